package cmd

import (
	"fmt"

	"github.com/audiolibrelab/opentune/internal/project"

	"github.com/spf13/cobra"
)

var (
	projectAuthor string
	projectBPM    int
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := project.NewManager(cfg.Project.Directory)
		if err != nil {
			return err
		}

		author := projectAuthor
		if author == "" {
			author = cfg.Project.Author
		}

		p, err := mgr.Create(args[0], author, project.CreateOptions{
			BPM:        projectBPM,
			SampleRate: cfg.Capture.SampleRate,
			BitDepth:   cfg.Output.BitDepth,
		})
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		fmt.Printf("created project '%s'\n  id: %s\n  dir: %s/%s\n", p.Metadata.Name, p.ID, cfg.Project.Directory, p.ID)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := project.NewManager(cfg.Project.Directory)
		if err != nil {
			return err
		}

		projects, err := mgr.List()
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("no projects found")
			return nil
		}

		fmt.Printf("📁 Projects (%d found)\n", len(projects))
		fmt.Printf("═══════════════════════════════════════\n\n")
		for _, p := range projects {
			fmt.Printf("  %s  %s\n", p.ID, p.Metadata.Name)
			fmt.Printf("      author: %s  bpm: %d  tracks: %d  modified: %s\n",
				p.Metadata.Author, p.Metadata.BPM, len(p.Tracks), p.Metadata.ModifiedAt)
		}
		return nil
	},
}

var projectBackupCmd = &cobra.Command{
	Use:   "backup [id]",
	Short: "Back up a project directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := project.NewManager(cfg.Project.Directory)
		if err != nil {
			return err
		}

		p, err := mgr.Open(args[0])
		if err != nil {
			return err
		}

		path, err := mgr.Backup()
		if err != nil {
			return fmt.Errorf("failed to back up project: %w", err)
		}

		fmt.Printf("backed up project '%s'\n  dir: %s\n", p.Metadata.Name, path)
		return nil
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectAuthor, "author", "", "project author (overrides config)")
	projectCreateCmd.Flags().IntVar(&projectBPM, "bpm", 140, "project tempo")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectBackupCmd)
}
