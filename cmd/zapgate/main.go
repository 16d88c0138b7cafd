package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"zapgate/internal/config"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "zapgate",
		Short: "ZapGate: WhatsApp to webhook bridge",
		Long:  "ZapGate bridges a WhatsApp-web session to an automation webhook and exposes an HTTP API for outbound messages.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.zapgate/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

// newLogger builds the process logger from config (level + optional file).
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("zapgate " + version)
		},
	}
}

// apiBase returns the base URL of the locally running instance.
func apiBase(cfg *config.Config) string {
	host := cfg.API.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.API.Port)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status of the running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(apiBase(cfg) + "/status")
			if err != nil {
				return fmt.Errorf("is zapgate serve running? %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			fmt.Println(strings.TrimSpace(string(body)))
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	var phone, message, audioFile, mimeType string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message through the running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if phone == "" {
				phone = cfg.Outbound.DefaultTestPhone
			}
			if phone == "" {
				return fmt.Errorf("--phone is required (no default test phone configured)")
			}

			payload := map[string]any{"phone": phone}
			if message != "" {
				payload["message"] = message
			}
			if audioFile != "" {
				data, err := os.ReadFile(audioFile)
				if err != nil {
					return fmt.Errorf("read audio file: %w", err)
				}
				payload["audioBase64"] = base64.StdEncoding.EncodeToString(data)
				if mimeType != "" {
					payload["mimeType"] = mimeType
				}
			}

			body, _ := json.Marshal(payload)
			client := &http.Client{Timeout: 60 * time.Second}
			resp, err := client.Post(apiBase(cfg)+"/send-message", "application/json", strings.NewReader(string(body)))
			if err != nil {
				return fmt.Errorf("is zapgate serve running? %w", err)
			}
			defer resp.Body.Close()

			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			fmt.Println(strings.TrimSpace(string(respBody)))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("send failed with status %d", resp.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "destination phone number")
	cmd.Flags().StringVar(&message, "message", "", "text message")
	cmd.Flags().StringVar(&audioFile, "audio", "", "path to an audio file to send")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type of the audio file")
	return cmd
}
