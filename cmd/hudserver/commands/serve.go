package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hudwear/hudserver/internal/config"
	"github.com/hudwear/hudserver/internal/server"
)

var bannerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#00ff9f")).
	Padding(0, 1)

var flagConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HUD fusion server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagConfigPath, "config", "", "path to a hud.yaml config file (defaults applied if empty)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	logger := slog.Default()

	cfg := config.Default()
	if flagConfigPath != "" {
		loaded, err := config.Load(flagConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config %q: %w", flagConfigPath, err)
		}
		cfg = loaded
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()
	}()

	fmt.Println(bannerStyle.Render(fmt.Sprintf("hudserver listening on %s:%d", cfg.Host, cfg.Port)))

	s := server.New(cfg)
	logger.Info("starting hudserver", "host", cfg.Host, "port", cfg.Port)

	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
