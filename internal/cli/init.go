package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"depswap/internal/app"
)

type initOptions struct {
	Root  string
	Name  string
	Force bool
}

func newInitCommand(cfg *RootConfig) *cobra.Command {
	opts := initOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Discover build units and write the workspace file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Root, "root", ".", "Directory scanned for build-unit manifests")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Workspace name")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite an existing workspace file")

	_ = viper.BindPFlag("workspace_root", cmd.Flags().Lookup("root"))

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, cfg *RootConfig, opts initOptions) error {
	service, err := newAppService(cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	result, err := service.InitWorkspace(ctx, app.InitRequest{
		Root:  resolveString(cmd, opts.Root, "workspace_root", "root"),
		Name:  opts.Name,
		Force: opts.Force,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "workspace: %s\n", result.Path)
	for _, unit := range result.Units {
		fmt.Fprintf(out, "  %s (%s)\n", unit.Name, unit.ManifestPath)
	}
	return nil
}
