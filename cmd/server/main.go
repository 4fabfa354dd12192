package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/devXcant/lecture-learning-sphere/internal/config"
	"github.com/devXcant/lecture-learning-sphere/internal/logging"
	"github.com/devXcant/lecture-learning-sphere/internal/server"
	"github.com/devXcant/lecture-learning-sphere/internal/signaling"
)

var (
	flagAddr     string
	flagLogLevel string
	flagReap     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "lecture-signal",
	Short: "WebRTC signaling relay for live lecture rooms",
	Long: `lecture-signal brokers WebRTC connection setup (offers, answers,
ICE candidates) between one lecturer and many students per room.
Media flows peer to peer; this server only relays signaling JSON.`,
	RunE: runServer,
}

func init() {
	cfg := config.Load()
	rootCmd.Flags().StringVar(&flagAddr, "addr", cfg.Addr, "listen address")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	rootCmd.Flags().DurationVar(&flagReap, "reap-interval", cfg.ReapInterval, "empty-room sweep period")
}

func runServer(cmd *cobra.Command, args []string) error {
	logging.Init(flagLogLevel)

	cfg := config.Load()
	cfg.Addr = flagAddr
	cfg.ReapInterval = flagReap

	// The hub's event loop owns all room state for the process lifetime.
	hub := signaling.NewHub(cfg.ReapInterval)
	go hub.Run()

	return server.New(cfg, hub).Run()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
