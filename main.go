package main

import "github.com/audiolibrelab/opentune/cmd"

func main() {
	cmd.Execute()
}
