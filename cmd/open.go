package cmd

import (
	"context"
	"os"
	"time"

	"github.com/loft-sh/log"
	"github.com/skevetter/pipecat/cmd/flags"
	"github.com/skevetter/pipecat/pkg/pipe"
	"github.com/spf13/cobra"
)

// OpenCmd holds the cmd flags.
type OpenCmd struct {
	*flags.GlobalFlags

	Timeout time.Duration
}

// NewOpenCmd creates a new command
func NewOpenCmd(globalFlags *flags.GlobalFlags) *cobra.Command {
	cmd := &OpenCmd{
		GlobalFlags: globalFlags,
	}
	openCmd := &cobra.Command{
		Use:   "open <name>",
		Short: "Connects to an existing named pipe and shuttles stdin/stdout through it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.Run(cobraCmd.Context(), args)
		},
	}

	flags.DurationVarE(openCmd.Flags(), &cmd.Timeout, "timeout", flags.PipecatEnvPrefix+"TIMEOUT", 0, "Per-operation idle timeout, 0 waits forever")
	return openCmd
}

// Run runs the command logic
func (cmd *OpenCmd) Run(ctx context.Context, args []string) error {
	logger := log.Default.ErrorStreamOnly()

	p := pipe.New()
	if err := p.OpenExisting(args[0]); err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	logger.Infof("Connected to pipe %s", args[0])

	return shuttle(ctx, p, cmd.Timeout, os.Stdin, os.Stdout, logger)
}
