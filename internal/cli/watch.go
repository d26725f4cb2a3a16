package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"depswap/internal/app"
)

type watchOptions struct {
	Debounce time.Duration
}

func newWatchCommand(cfg *RootConfig) *cobra.Command {
	opts := watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print dependencies and swaps whenever the workspace changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, cfg, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 200*time.Millisecond, "Quiet period before refreshing")
	_ = viper.BindPFlag("watch_debounce", cmd.Flags().Lookup("debounce"))
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, cfg *RootConfig, opts watchOptions) error {
	service, err := newAppService(cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	debounce := opts.Debounce
	if !flagChanged(cmd, "debounce") {
		debounce = viper.GetDuration("watch_debounce")
	}
	out := cmd.OutOrStdout()
	return service.Watch(ctx, app.WatchRequest{
		Debounce: debounce,
		OnRefresh: func(result app.RefreshResult) {
			renderRefresh(out, result)
		},
	})
}
