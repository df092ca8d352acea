package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpmatch/internal/config"
	"github.com/BioHazard786/warpmatch/internal/probe"
	"github.com/BioHazard786/warpmatch/internal/ui"
)

var (
	flagProbeServer string
	flagSTUN        string
	flagTURN        string
	flagTURNUser    string
	flagTURNPass    string
	flagTimeout     time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check a server end to end with two WebRTC peers",
	Long: `Connect two peers to a signaling server, match them on a one-off tag,
open a WebRTC data channel through the relay, exchange a ping and hang up.

Examples:
  warpmatch probe
  warpmatch probe --server wss://match.example.com/ws
  warpmatch probe --stun none --turn turn:turn.example.com --turn-user u --turn-pass p`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadProbe(config.ProbeOptions{
			ServerURL:  flagProbeServer,
			STUNServer: flagSTUN,
			TURNServer: flagTURN,
			TURNUser:   flagTURNUser,
			TURNPass:   flagTURNPass,
		})
		if err != nil {
			return err
		}

		p := probe.New(cfg, flagTimeout, slog.Default())

		sp := ui.NewWaitingSpinner(stepMessage("connect", cfg.ServerURL))
		p.OnStep(func(name string) {
			sp.UpdateMessage(stepMessage(name, cfg.ServerURL))
		})
		sp.Start()
		err = p.Run(cmd.Context())
		if err != nil {
			sp.Error("Probe failed")
		} else {
			sp.Success("Signaling server is working")
		}

		ui.RenderProbeReport(reportSteps(p.Steps()))
		return err
	},
}

// stepMessage is the spinner text shown while a probe stage runs.
func stepMessage(step, serverURL string) string {
	switch step {
	case "connect":
		return ui.IconConnect + " Connecting two peers to " + serverURL + "..."
	case "match":
		return ui.IconPeer + " Waiting for the peers to be matched..."
	case "negotiate":
		return ui.IconWaiting + " Negotiating a data channel through the relay..."
	default:
		return ui.IconWaiting + " " + step + "..."
	}
}

func init() {
	probeCmd.Flags().StringVarP(&flagProbeServer, "server", "s", "", "websocket URL (env: WARPMATCH_URL)")
	probeCmd.Flags().StringVar(&flagSTUN, "stun", "", "STUN server, or \"none\" (env: STUN_SERVER)")
	probeCmd.Flags().StringVar(&flagTURN, "turn", "", "TURN server (env: TURN_SERVER)")
	probeCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username (env: TURN_USERNAME)")
	probeCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password (env: TURN_PASSWORD)")
	probeCmd.Flags().DurationVar(&flagTimeout, "timeout", 15*time.Second, "time limit per probe step")

	rootCmd.AddCommand(probeCmd)
}

func reportSteps(steps []probe.Step) []ui.ProbeStep {
	out := make([]ui.ProbeStep, 0, len(steps))
	for _, st := range steps {
		out = append(out, ui.ProbeStep{Name: st.Name, Duration: st.Duration, Err: st.Err})
	}
	return out
}
