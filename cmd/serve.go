package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BioHazard786/warpmatch/internal/config"
	"github.com/BioHazard786/warpmatch/internal/logging"
	"github.com/BioHazard786/warpmatch/internal/matchmaking"
	"github.com/BioHazard786/warpmatch/internal/metrics"
	"github.com/BioHazard786/warpmatch/internal/server"
	"github.com/BioHazard786/warpmatch/internal/signaling"
	"github.com/BioHazard786/warpmatch/internal/ui"
	"github.com/BioHazard786/warpmatch/internal/version"
)

const shutdownTimeout = 10 * time.Second

var (
	flagConfigFile string
	flagListen     string
	flagMode       string
	flagOrigins    []string
	flagLogLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the matchmaking and signaling server",
	Long: `Run the matchmaking and signaling server.

Settings are read from flags, then environment variables (LISTEN_ADDR,
MATCH_MODE, ALLOWED_ORIGINS, LOG_LEVEL), then the YAML file named by
--config or WARPMATCH_CONFIG.

Examples:
  warpmatch serve
  warpmatch serve --listen :9000 --mode room
  warpmatch serve --config /etc/warpmatch.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&flagConfigFile, "config", "c", "", "YAML config file")
	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "HTTP listen address (default \":8080\")")
	serveCmd.Flags().StringVarP(&flagMode, "mode", "m", "", "match mode: interest or room (default \"interest\")")
	serveCmd.Flags().StringSliceVar(&flagOrigins, "origins", nil, "allowed websocket origins (default: any)")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(config.Options{
		ConfigFile:     flagConfigFile,
		ListenAddr:     flagListen,
		MatchMode:      flagMode,
		AllowedOrigins: flagOrigins,
		LogLevel:       flagLogLevel,
	})
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.Init(cfg.LogLevel)

	opts := cfg.RegistryOptions()
	opts.Logger = logger
	registry := matchmaking.NewRegistry(opts)
	collector := metrics.New()
	hub := signaling.NewHub(registry, collector, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewRouter(hub, collector, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ui.PrintInfof("%s Listening on %s in %s mode", ui.IconConnect, cfg.ListenAddr, cfg.MatchMode)
	if len(cfg.AllowedOrigins) == 0 {
		ui.PrintWarning("Accepting websocket upgrades from any origin")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("starting signaling server",
			"addr", cfg.ListenAddr, "mode", cfg.MatchMode, "version", version.Version)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down signaling server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
