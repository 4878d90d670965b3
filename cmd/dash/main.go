package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/Dash/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "dash",
	Short: "Keeps the camera and telemetry channels to the vehicle device alive",
	Long: `dash connects to the vehicle device, keeps its WebRTC camera session and
telemetry WebSocket up, and serves the HUD to local browser viewers.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	config.Flags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(probeCmd)
}

func main() {
	// Console logger until the config says otherwise.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("dash failed")
		os.Exit(1)
	}
}
