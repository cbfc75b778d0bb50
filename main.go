package main

import "github.com/skevetter/pipecat/cmd"

func main() {
	cmd.Execute()
}
