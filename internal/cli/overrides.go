package cli

import (
	"context"

	"github.com/spf13/cobra"
)

type overridesOptions struct {
	Index bool
}

func newOverridesCommand(cfg *RootConfig) *cobra.Command {
	opts := overridesOptions{}
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "List dependency overrides from config and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOverrides(cmd.Context(), cmd, cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Index, "index", false, "Also list the local manifests found under the search root")
	return cmd
}

func runOverrides(ctx context.Context, cmd *cobra.Command, cfg *RootConfig, opts overridesOptions) error {
	service, err := newAppService(cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	out := cmd.OutOrStdout()
	renderManifests(out, service.Overrides(), "no overrides")
	if !opts.Index {
		return nil
	}
	entries, err := service.CacheEntries(ctx)
	if err != nil {
		return err
	}
	renderManifests(out, entries, "no local manifests found")
	return nil
}
