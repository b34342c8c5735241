// Package planner parses planner command flags and launches the planner runtime.
package planner

import (
	"context"
	"flag"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/amaya/internal/platform/cmd"
	plannerapp "github.com/louisbranch/amaya/internal/services/planner/app"
	mcpservice "github.com/louisbranch/amaya/internal/services/planner/mcp/service"
)

// Config holds planner command configuration.
type Config struct {
	DBPath          string        `env:"AMAYA_DB_PATH" envDefault:"data/planner.db"`
	ViewPath        string        `env:"AMAYA_VIEW_PATH"`
	Timezone        string        `env:"AMAYA_TIMEZONE" envDefault:"UTC"`
	Locale          string        `env:"AMAYA_LOCALE" envDefault:"en"`
	OwnerID         string        `env:"AMAYA_OWNER_ID"`
	MaxAttempts     int           `env:"AMAYA_MAX_ATTEMPTS" envDefault:"5"`
	RetryBackoff    time.Duration `env:"AMAYA_RETRY_BACKOFF" envDefault:"30s"`
	RetryMaxDelay   time.Duration `env:"AMAYA_RETRY_MAX_DELAY" envDefault:"10m"`
	DeliveryTimeout time.Duration `env:"AMAYA_DELIVERY_TIMEOUT" envDefault:"15s"`
	HealthPort      int           `env:"AMAYA_HEALTH_PORT" envDefault:"8790"`
	Transport       string        `env:"AMAYA_MCP_TRANSPORT" envDefault:"stdio"`
	HTTPAddr        string        `env:"AMAYA_MCP_HTTP_ADDR" envDefault:"localhost:8765"`
	AllowedHosts    string        `env:"AMAYA_MCP_ALLOWED_HOSTS"`
	Notifier        string        `env:"AMAYA_NOTIFIER" envDefault:"log"`
	WebhookURL      string        `env:"AMAYA_WEBHOOK_URL"`
	WebhookToken    string        `env:"AMAYA_WEBHOOK_TOKEN"`
	JWTIssuer       string        `env:"AMAYA_MCP_JWT_ISSUER"`
	JWTAudience     string        `env:"AMAYA_MCP_JWT_AUDIENCE"`
	JWTPublicKey    string        `env:"AMAYA_MCP_JWT_PUBLIC_KEY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The planner SQLite database path")
	fs.StringVar(&cfg.ViewPath, "view-path", cfg.ViewPath, "Optional file that mirrors the rendered plan view")
	fs.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "Planner timezone (IANA name, UTC or local)")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Locale for rendered views and reminder text")
	fs.StringVar(&cfg.OwnerID, "owner-id", cfg.OwnerID, "Recipient id attached to notifications")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum delivery attempts before a reminder fails")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base delivery retry backoff")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum delivery retry delay")
	fs.DurationVar(&cfg.DeliveryTimeout, "delivery-timeout", cfg.DeliveryTimeout, "Timeout for one notification attempt")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The planner health gRPC server port")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "MCP transport: stdio, http or none")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.AllowedHosts, "allowed-hosts", cfg.AllowedHosts, "Comma-separated extra hosts accepted by the HTTP transport")
	fs.StringVar(&cfg.Notifier, "notifier", cfg.Notifier, "Notifier: log or webhook")
	fs.StringVar(&cfg.WebhookURL, "webhook-url", cfg.WebhookURL, "Webhook notifier URL")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the planner runtime.
func Run(ctx context.Context, cfg Config) error {
	bearer, err := mcpservice.NewBearerConfig(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTPublicKey)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePlanner, func(ctx context.Context) error {
		return plannerapp.Run(ctx, plannerapp.RuntimeConfig{
			DBPath:          cfg.DBPath,
			ViewPath:        cfg.ViewPath,
			Timezone:        cfg.Timezone,
			Locale:          cfg.Locale,
			OwnerID:         cfg.OwnerID,
			MaxAttempts:     cfg.MaxAttempts,
			RetryBackoff:    cfg.RetryBackoff,
			RetryMaxDelay:   cfg.RetryMaxDelay,
			DeliveryTimeout: cfg.DeliveryTimeout,
			HealthPort:      cfg.HealthPort,
			Transport:       cfg.Transport,
			HTTPAddr:        cfg.HTTPAddr,
			AllowedHosts:    splitHosts(cfg.AllowedHosts),
			Bearer:          bearer,
			NotifierKind:    cfg.Notifier,
			WebhookURL:      cfg.WebhookURL,
			WebhookToken:    cfg.WebhookToken,
		})
	})
}

func splitHosts(raw string) []string {
	var hosts []string
	for _, host := range strings.Split(raw, ",") {
		if host = strings.TrimSpace(host); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}
