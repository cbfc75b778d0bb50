package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// set at build time via -ldflags
var version = "v0.0.0-dev"

// NewVersionCmd creates a new command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the pipecat version",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			fmt.Printf("pipecat %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
