package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/evaluator/internal/config"
	"github.com/phrazzld/evaluator/internal/platform/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configFile string
	v          *viper.Viper
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:           "server",
		Short:         "Asynchronous text and audio evaluation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default ./config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	_ = opts.v.BindPFlag("server.log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newAPICommand(opts),
		newWorkerCommand(opts),
		newMigrateCommand(opts),
	)
	return root
}

// load reads configuration and sets up the process logger.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	if o.configFile != "" {
		o.v.SetConfigFile(o.configFile)
	}
	cfg, err := config.LoadFrom(o.v)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}
