package cli

import (
	"context"

	"github.com/spf13/cobra"
)

type listOptions struct {
	Swaps bool
}

func newListCommand(cfg *RootConfig) *cobra.Command {
	opts := listOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List remote dependencies per build unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), cmd, cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Swaps, "swaps", false, "List active swaps instead")
	return cmd
}

func runList(ctx context.Context, cmd *cobra.Command, cfg *RootConfig, opts listOptions) error {
	service, err := newAppService(cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	if opts.Swaps {
		swaps, err := service.ListSwaps(ctx)
		if err != nil {
			return err
		}
		renderSwaps(cmd.OutOrStdout(), swaps)
		return nil
	}
	deps, err := service.ListDependencies(ctx)
	if err != nil {
		return err
	}
	renderDependencies(cmd.OutOrStdout(), deps)
	return nil
}
