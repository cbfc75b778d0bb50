package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/loft-sh/log"
	"github.com/sirupsen/logrus"
	"github.com/skevetter/pipecat/cmd/flags"
	"github.com/spf13/cobra"
)

var globalFlags *flags.GlobalFlags

// NewRootCmd returns a new root command
func NewRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "pipecat",
		Short:         "Pipecat - netcat for named pipes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cobraCmd *cobra.Command, args []string) error {
			if globalFlags.LogOutput == "json" {
				log.Default.SetFormat(log.JSONFormat)
			} else if globalFlags.LogOutput == "raw" {
				log.Default.SetFormat(log.RawFormat)
			} else if globalFlags.LogOutput != "plain" {
				return fmt.Errorf("unrecognized log format %s, needs to be either plain, raw or json", globalFlags.LogOutput)
			}

			if globalFlags.Silent {
				log.Default.SetLevel(logrus.FatalLevel)
			} else if globalFlags.Debug {
				log.Default.SetLevel(logrus.DebugLevel)
			}

			return nil
		},
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := BuildRoot()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if globalFlags.Debug {
			log.Default.Fatalf("%+v", err)
		}

		log.Default.Fatal(err)
	}
}

// BuildRoot creates a new root command and adds all subcommands
func BuildRoot() *cobra.Command {
	rootCmd := NewRootCmd()
	persistentFlags := rootCmd.PersistentFlags()
	globalFlags = flags.SetGlobalFlags(persistentFlags)

	rootCmd.AddCommand(NewCreateCmd(globalFlags))
	rootCmd.AddCommand(NewOpenCmd(globalFlags))
	rootCmd.AddCommand(NewVersionCmd())
	return rootCmd
}
