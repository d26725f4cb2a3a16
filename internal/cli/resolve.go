package cli

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
)

func newResolveCommand(cfg *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve DEPENDENCY",
		Short: "Show the local manifest a dependency would be swapped to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), cmd, cfg, args[0])
		},
	}
}

func runResolve(ctx context.Context, cmd *cobra.Command, cfg *RootConfig, name string) error {
	service, err := newAppService(cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	result, err := service.ResolveLocalPath(ctx, name)
	if err != nil {
		return err
	}
	if !result.Found {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no local manifest found for " + result.Name)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", result.Name, result.Path, result.Source)
	return nil
}
