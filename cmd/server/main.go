package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbocsi/homelink/app"
	"github.com/mbocsi/homelink/config"
	"github.com/mbocsi/homelink/line"
	"github.com/mbocsi/homelink/logging"
	"github.com/mbocsi/homelink/mcp"
	"github.com/mbocsi/homelink/server"
	"github.com/mbocsi/homelink/services"
	"github.com/mbocsi/homelink/templates"
	"github.com/spf13/cobra"
)

var version = "dev"

type options struct {
	configPath string
	envFile    string
	mcp        bool
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "homelink-server",
		Short:        "Bridge a LINE bot to the home monitoring device",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	rootCmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.Flags().BoolVar(&opts.mcp, "mcp", false, "also serve the chat commands as MCP tools on stdio")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return err
	}

	serveMCP := opts.mcp || cfg.MCP.Enabled
	if serveMCP {
		// stdout carries the MCP stream
		cfg.Logging.Output = "stderr"
	}
	logging.Setup(cfg.Logging, version)

	status, err := templates.LoadStatus(cfg.Templates.StatusPath)
	if err != nil {
		return err
	}
	alert, err := templates.LoadAlert(cfg.Templates.AlertPath)
	if err != nil {
		return err
	}

	sender, err := line.NewClient(cfg.Line.ChannelAccessToken)
	if err != nil {
		return err
	}

	registry := server.NewSessionRegistry()
	devices := services.NewDeviceService(registry, services.NewQueryTracker(cfg.GetQueryTimeout()))
	homelink := app.NewApp(devices, sender, status, alert)

	transport := server.NewWSTransport(cfg.Device.Path)
	transport.SetDescription("Home monitoring device channel")
	transport.SetMaxSessions(cfg.Device.MaxSessions)
	transport.SetMaxMessageSize(cfg.Device.MaxMessageSize)
	transport.SetKeepAlive(cfg.GetPingInterval(), cfg.GetPongTimeout())

	coordinator := server.NewCoordinator(registry)
	coordinator.RegisterTransport(transport)
	coordinator.OnResponse(devices.HandleResponse)
	coordinator.OnSessionEnded(devices.SessionEnded)
	coordinator.OnEvent(homelink.EventHook(ctx))

	webhook := line.NewWebhookHandler(ctx, cfg.Line.ChannelSecret, homelink)

	if serveMCP {
		mcpServer := mcp.NewMCPServer(homelink, version, cfg.GetToolTimeout())
		go func() {
			if err := mcpServer.Run(); err != nil {
				slog.Error("MCP server stopped", "error", err)
			}
		}()
	}

	srv := server.NewHomelinkServer(coordinator, server.HomelinkServerOptions{
		Addr:         cfg.Addr(),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  cfg.GetIdleTimeout(),
		WebhookPath:  cfg.Server.WebhookPath,
		Webhook:      webhook,
		Health:       homelink.HealthHandler(),
	})

	if cfg.Device.Advertise {
		stopAdvertising, err := server.Advertise("homelink", cfg.Server.Port, cfg.Device.Path, version)
		if err != nil {
			slog.Warn("Not advertising device channel", "error", err)
		} else {
			defer stopAdvertising()
		}
	}

	slog.Info("Starting homelink",
		"addr", cfg.Addr(),
		"webhook", cfg.Server.WebhookPath,
		"socket", cfg.Device.Path,
		"query_timeout", cfg.GetQueryTimeout(),
	)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	webhook.Wait()
	slog.Info("Stopped")
	return nil
}
