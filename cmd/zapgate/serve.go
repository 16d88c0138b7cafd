package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"zapgate/internal/api"
	"zapgate/internal/bus"
	"zapgate/internal/gateway"
	"zapgate/internal/inbound"
	"zapgate/internal/metrics"
	"zapgate/internal/outbound"
	"zapgate/internal/relay"
	"zapgate/internal/session"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge (gateway receiver + inbound pipeline + API)",
		Long:  "Starts the event receiver, the inbound classify/relay pipeline and the HTTP API. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	if cfg.Relay.WebhookURL == "" {
		log.Warn("relay.webhookUrl not configured: inbound messages will not be relayed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(log)

	gwClient := gateway.NewClient(gateway.ClientConfig{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey,
		Session: cfg.Gateway.Session,
		Logger:  log,
	})

	queue := bus.New(100, log)

	classifier := inbound.NewClassifier(gwClient, log)
	sink := relay.New(relay.Config{
		URL:       cfg.Relay.WebhookURL,
		UserAgent: "zapgate/" + version,
		Timeout:   time.Duration(cfg.Relay.TimeoutSeconds) * time.Second,
		Logger:    log,
	})
	pipeline := inbound.NewPipeline(queue, classifier, sink, log)
	go pipeline.Run(ctx)

	receiver := gateway.NewReceiver(gateway.ReceiverConfig{
		Secret:  cfg.Gateway.WebhookSecret,
		Session: sess,
		Queue:   queue,
		OnChallenge: func(data string) {
			fmt.Fprintln(os.Stderr, "Escaneie o QR Code abaixo com seu WhatsApp:")
			qrterminal.GenerateHalfBlock(data, qrterminal.L, os.Stderr)
			fmt.Fprintln(os.Stderr, "Aguardando escaneamento...")
		},
		Logger: log,
	})

	deliverer := outbound.New(gwClient, sess, log)

	serverCfg := api.ServerConfig{
		Addr:             fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Deliverer:        deliverer,
		Session:          sess,
		DefaultTestPhone: cfg.Outbound.DefaultTestPhone,
		SendTimeout:      time.Duration(cfg.Outbound.SendTimeoutSeconds) * time.Second,
		GatewayEvents:    receiver,
		Logger:           log,
	}
	if cfg.Metrics.Enabled {
		serverCfg.MetricsHandler = metrics.Collector.Handler()
		serverCfg.MetricsEndpoint = cfg.Metrics.Endpoint
	}
	server := api.NewServer(serverCfg)

	log.Info("zapgate started", "version", version,
		"gateway", cfg.Gateway.BaseURL, "session", cfg.Gateway.Session)

	// Blocks until signal; the server drains in-flight sends on shutdown.
	serveErr := server.Start(ctx)

	// Stop intake and let the pipeline drain what it already accepted.
	// In-flight webhook relays may be abandoned.
	queue.Close()
	select {
	case <-pipeline.Done():
	case <-time.After(10 * time.Second):
		log.Warn("pipeline drain timed out")
	}

	log.Info("shutdown complete")
	return serveErr
}
