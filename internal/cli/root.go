// Package cli はコマンドライン（serve / scan-overdue / migrate）。
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"library-backend/internal/app"
	"library-backend/internal/platform/config"
)

var (
	configFile string
	outputJSON bool
)

// NewRootCmd はサブコマンド無しで serve と同じ動作をする。
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "library-backend",
		Short:        "Library catalog and loan service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")

	root.AddCommand(newServeCmd())
	root.AddCommand(newScanOverdueCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func bootstrap(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
