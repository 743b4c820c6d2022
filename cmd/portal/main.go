package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reliefportal/internal/config"
	"reliefportal/internal/logging"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.L().Error("command_failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	envFile string
	cfg     config.Config
	flush   func()
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "portal",
		Short:         "Relief portal: alerts, volunteer shifts and donations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.flush != nil {
				c.flush()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file read before the environment")

	root.AddCommand(
		serveCmd(c),
		migrateCmd(c),
		promoteCmd(c),
		seedCmd(c),
	)
	return root
}

// init loads configuration and installs the configured logger. A bootstrap
// logger is in place first so configuration warnings are not lost.
func (c *cli) init() error {
	bootstrap, err := logging.Install(logging.EnvDevelopment, "info")
	if err != nil {
		return err
	}
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return err
	}
	bootstrap()

	flush, err := logging.Install(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.flush = flush
	return nil
}
