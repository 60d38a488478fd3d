package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errUsage marks invalid invocations; the message is already printed.
var errUsage = errors.New("usage error")

// rootOptions holds the persistent flags every subcommand reads.
type rootOptions struct {
	configPath string
}

// newRootCmd creates the root command and registers the subcommands.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "corpusbuilder",
		Short: "Build labeled fastText corpora for finance-intent classification.",
		Long: `corpusbuilder collects finance-related sentences from scholarly APIs and
curated websites, labels them against a keyword table, and appends them to a
fastText training file. Long runs checkpoint their progress and resume.`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "unknown command %q\n", args[0])
			}
			_ = cmd.Usage()
			return errUsage
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprintf(c.ErrOrStderr(), "%s: %v\n", c.Name(), err)
		_ = c.Usage()
		return errUsage
	})

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")

	cmd.AddCommand(
		newPapersCmd(opts),
		newSitesCmd(opts),
		newKeywordsCmd(opts),
		newDatasetCmd(opts),
	)
	return cmd
}

// noArgs rejects positional arguments; every input is a flag.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: unexpected arguments: %v\n", cmd.Name(), args)
		return errUsage
	}
	return nil
}
