package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/callmatch/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "callmatch",
	Short: "Call matching and signaling server",
	Long: `callmatch pairs callers with available callees over WebSocket and
relays their WebRTC negotiation until the call ends.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		setupLogger(os.Stderr, cfg.Mode, cfg.LogLevel)
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default config/config.<CONFIG_ENV>.yaml)")
	rootCmd.Flags().Int("port", 8080, "HTTP listen port")
	rootCmd.Flags().String("mode", "release", "gin mode: debug, release or test")
}

// setupLogger writes human-friendly output in debug mode and JSON otherwise.
func setupLogger(w io.Writer, mode, level string) {
	if mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
	} else {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	setupLogger(os.Stderr, "release", "info")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("callmatch failed")
		os.Exit(1)
	}
}
