package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hudserver",
	Short: "Realtime audio-fusion WebSocket server for the HUD wearable",
	Long: `hudserver bridges a wearable's front microphones, a phone mic link,
and a pair of haptic actuators into one realtime session:

  /events        HUD control channel (poses, config, status, alerts)
  /stt           phone mic audio for speech-to-text
  /esp32/audio   front mic audio ingress, one connection per side

Direction-of-arrival, radar tracking, alarm-sound detection and external
haptic cueing all run as background loops against the same shared state.

Examples:
  hudserver serve --config hud.yaml
  hudserver version`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
