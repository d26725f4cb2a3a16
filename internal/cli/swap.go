package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"depswap/internal/app"
)

type swapOptions struct {
	Version string
	Path    string
}

func newSwapCommand(cfg *RootConfig) *cobra.Command {
	opts := swapOptions{}
	cmd := &cobra.Command{
		Use:   "swap UNIT DEPENDENCY",
		Short: "Replace a remote dependency with a reference to its local source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwap(cmd.Context(), cmd, cfg, args[0], args[1], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Version, "version", "", "Expected dependency version (informational)")
	cmd.Flags().StringVar(&opts.Path, "path", "", "Local manifest to use instead of resolving one")
	return cmd
}

func runSwap(ctx context.Context, cmd *cobra.Command, cfg *RootConfig, unit string, dependency string, opts swapOptions) error {
	service, err := newAppService(cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	result, err := service.SwapPackage(ctx, app.SwapRequest{
		Unit:       unit,
		Dependency: dependency,
		Version:    opts.Version,
		LocalPath:  opts.Path,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "swapped: %s %s in %s -> %s\n", result.Dependency, result.Version, result.Unit, result.LocalPath)
	return nil
}

func newUnswapCommand(cfg *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "unswap UNIT DEPENDENCY",
		Short: "Restore a swapped dependency to its remote form",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnswap(cmd.Context(), cmd, cfg, args[0], args[1])
		},
	}
}

func runUnswap(ctx context.Context, cmd *cobra.Command, cfg *RootConfig, unit string, dependency string) error {
	service, err := newAppService(cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	result, err := service.SwapProject(ctx, app.UnswapRequest{Unit: unit, Dependency: dependency})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored: %s in %s\n", result.Dependency, result.Unit)
	if result.GroupRemoved {
		fmt.Fprintln(cmd.OutOrStdout(), "swap group removed")
	}
	return nil
}
