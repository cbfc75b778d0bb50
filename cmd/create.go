package cmd

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/loft-sh/log"
	"github.com/skevetter/pipecat/cmd/flags"
	"github.com/skevetter/pipecat/pkg/pipe"
	"github.com/spf13/cobra"
)

// CreateCmd holds the cmd flags.
type CreateCmd struct {
	*flags.GlobalFlags

	MustNotExist bool
	Timeout      time.Duration
}

// NewCreateCmd creates a new command
func NewCreateCmd(globalFlags *flags.GlobalFlags) *cobra.Command {
	cmd := &CreateCmd{
		GlobalFlags: globalFlags,
	}
	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Creates a named pipe and shuttles stdin/stdout through it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.Run(cobraCmd.Context(), args)
		},
	}

	flags.BoolVarE(createCmd.Flags(), &cmd.MustNotExist, "must-not-exist", flags.PipecatEnvPrefix+"MUST_NOT_EXIST", false, "Fail instead of reclaiming a leftover pipe of the same name")
	flags.DurationVarE(createCmd.Flags(), &cmd.Timeout, "timeout", flags.PipecatEnvPrefix+"TIMEOUT", 0, "Per-operation idle timeout, 0 waits forever")
	return createCmd
}

// Run runs the command logic
func (cmd *CreateCmd) Run(ctx context.Context, args []string) error {
	logger := log.Default.ErrorStreamOnly()

	name := "pipecat-" + uuid.NewString()[:8]
	if len(args) > 0 {
		name = args[0]
	}

	p := pipe.New()
	if err := p.CreateNewPipe(name, cmd.MustNotExist); err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	logger.Infof("Created pipe %s (%s), waiting for a peer", name, pipe.Addr(name))

	return shuttle(ctx, p, cmd.Timeout, os.Stdin, os.Stdout, logger)
}
