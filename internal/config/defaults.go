package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:3000",
			Session: "default",
		},
		Relay: RelayConfig{
			WebhookURL:     "",
			TimeoutSeconds: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Outbound: OutboundConfig{
			SendTimeoutSeconds: 30,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
