// Package project implements JSON-backed project persistence: creation,
// load/save, backups, and registering finished takes as audio tracks.
package project

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/opentune/internal/take"
)

const (
	projectFileName = "project.json"
	schemaVersion   = 1
)

// Metadata describes a project.
type Metadata struct {
	Name          string `json:"name"`
	CreatedAt     string `json:"created_at"`
	ModifiedAt    string `json:"modified_at"`
	Author        string `json:"author"`
	BPM           int    `json:"bpm"`
	TimeSignature string `json:"time_signature"`
	SampleRate    int    `json:"sample_rate"`
	BitDepth      int    `json:"bit_depth"`
}

// Track is one entry in the project's track list.
type Track struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Type    string  `json:"type"` // "audio", "midi", "automation"
	IsMuted bool    `json:"is_muted"`
	IsSolo  bool    `json:"is_solo"`
	Volume  float64 `json:"volume"`
	Pan     float64 `json:"pan"`
	File    string  `json:"file,omitempty"` // relative to the project dir
}

// Project is the persisted document.
type Project struct {
	ID       string   `json:"id"`
	Version  int      `json:"version"`
	Metadata Metadata `json:"metadata"`
	Tracks   []Track  `json:"tracks"`
	Markers  []string `json:"markers"`
}

// CreateOptions are the optional knobs for Create; zero values take the
// usual defaults.
type CreateOptions struct {
	BPM           int
	TimeSignature string
	SampleRate    int
	BitDepth      int
}

// Manager owns a projects directory and at most one open project.
type Manager struct {
	basePath   string
	current    *Project
	currentDir string
}

// NewManager ensures basePath exists and returns a manager rooted there.
func NewManager(basePath string) (*Manager, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create projects directory: %w", err)
	}
	return &Manager{basePath: basePath}, nil
}

// Create scaffolds a new project directory and makes it current.
func (m *Manager) Create(name, author string, opts CreateOptions) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}
	if opts.BPM == 0 {
		opts.BPM = 140
	}
	if opts.TimeSignature == "" {
		opts.TimeSignature = "4/4"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 44100
	}
	if opts.BitDepth == 0 {
		opts.BitDepth = 24
	}

	now := time.Now().UTC().Format(time.RFC3339)
	p := &Project{
		ID:      uuid.NewString(),
		Version: schemaVersion,
		Metadata: Metadata{
			Name:          name,
			CreatedAt:     now,
			ModifiedAt:    now,
			Author:        author,
			BPM:           opts.BPM,
			TimeSignature: opts.TimeSignature,
			SampleRate:    opts.SampleRate,
			BitDepth:      opts.BitDepth,
		},
		Tracks:  []Track{},
		Markers: []string{},
	}

	dir := filepath.Join(m.basePath, p.ID)
	for _, sub := range []string{"audio", "midi", "bounces", "automation"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("create project structure: %w", err)
		}
	}

	if err := writeProjectFile(p, dir); err != nil {
		return nil, err
	}

	m.current = p
	m.currentDir = dir
	return p, nil
}

// Open loads an existing project by ID and makes it current.
func (m *Manager) Open(id string) (*Project, error) {
	dir := filepath.Join(m.basePath, id)
	data, err := os.ReadFile(filepath.Join(dir, projectFileName))
	if err != nil {
		return nil, fmt.Errorf("project %s not found: %w", id, err)
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project file: %w", err)
	}

	m.current = &p
	m.currentDir = dir
	return &p, nil
}

// Save writes the current project back to disk, bumping ModifiedAt.
func (m *Manager) Save() error {
	if m.current == nil {
		return fmt.Errorf("no project open")
	}
	m.current.Metadata.ModifiedAt = time.Now().UTC().Format(time.RFC3339)
	return writeProjectFile(m.current, m.currentDir)
}

// Backup copies the current project directory, audio included, into a
// timestamped directory under backups/. Earlier backups are skipped so a
// backup never contains backups.
func (m *Manager) Backup() (string, error) {
	if m.current == nil {
		return "", fmt.Errorf("no project open")
	}

	backupRoot := filepath.Join(m.currentDir, "backups")
	if err := os.MkdirAll(backupRoot, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	dst := filepath.Join(backupRoot, stamp)
	for i := 1; ; i++ {
		err := os.Mkdir(dst, 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create backup directory: %w", err)
		}
		dst = filepath.Join(backupRoot, fmt.Sprintf("%s-%d", stamp, i))
	}

	if err := copyTree(m.currentDir, dst, "backups"); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return dst, nil
}

// AddTake writes the take into the project's audio directory as a WAV
// file and registers it as an audio track. The project is saved.
func (m *Manager) AddTake(t *take.Take, trackName string) (*Track, error) {
	if m.current == nil {
		return nil, fmt.Errorf("no project open")
	}
	if t.Empty() {
		return nil, fmt.Errorf("take is empty, nothing to add")
	}

	rel := filepath.Join("audio", fmt.Sprintf("%s.wav", sanitizeName(trackName)))
	if err := t.WriteWAV(filepath.Join(m.currentDir, rel), m.current.Metadata.BitDepth); err != nil {
		return nil, fmt.Errorf("write take: %w", err)
	}

	track := Track{
		ID:     uuid.NewString(),
		Name:   trackName,
		Type:   "audio",
		Volume: 1.0,
		File:   rel,
	}
	m.current.Tracks = append(m.current.Tracks, track)

	if err := m.Save(); err != nil {
		return nil, err
	}
	return &track, nil
}

// Current returns the open project, or nil.
func (m *Manager) Current() *Project {
	return m.current
}

// Close forgets the current project without writing anything.
func (m *Manager) Close() {
	m.current = nil
	m.currentDir = ""
}

// List returns every project under the base directory, sorted by name.
func (m *Manager) List() ([]Project, error) {
	entries, err := os.ReadDir(m.basePath)
	if err != nil {
		return nil, fmt.Errorf("read projects directory: %w", err)
	}

	var projects []Project
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.basePath, e.Name(), projectFileName))
		if err != nil {
			continue // not a project directory
		}
		var p Project
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		projects = append(projects, p)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Metadata.Name < projects[j].Metadata.Name
	})
	return projects, nil
}

func writeProjectFile(p *Project, dir string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, projectFileName), data, 0644); err != nil {
		return fmt.Errorf("write project file: %w", err)
	}
	return nil
}

// copyTree mirrors src under dst, skipping the named top-level entry.
func copyTree(src, dst, skip string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == skip {
			continue
		}
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := os.MkdirAll(to, 0755); err != nil {
				return err
			}
			if err := copyTree(from, to, ""); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(from, to); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// sanitizeName keeps letters, numbers, spaces, hyphens, and underscores,
// then replaces spaces with underscores.
func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "untitled"
	}
	return string(out)
}
