package planner

import (
	"context"
	"flag"
	"io"
	"slices"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("planner", flag.ContinueOnError)
	t.Setenv("AMAYA_TIMEZONE", "Asia/Shanghai")
	t.Setenv("AMAYA_RETRY_BACKOFF", "45s")

	cfg, err := ParseConfig(fs, []string{"-transport", "http", "-max-attempts", "3", "-db-path", "tmp/plan.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Timezone != "Asia/Shanghai" {
		t.Fatalf("timezone = %q, want Asia/Shanghai", cfg.Timezone)
	}
	if cfg.RetryBackoff != 45*time.Second {
		t.Fatalf("retry backoff = %v, want 45s", cfg.RetryBackoff)
	}
	if cfg.Transport != "http" || cfg.MaxAttempts != 3 || cfg.DBPath != "tmp/plan.db" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.HealthPort != 8790 || cfg.RetryMaxDelay != 10*time.Minute || cfg.DeliveryTimeout != 15*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseConfig_RejectsUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("planner", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseConfig(fs, []string{"-nope"}); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestRun_RejectsBadBearerConfig(t *testing.T) {
	cfg := Config{JWTIssuer: "https://auth.local", JWTAudience: "planner", JWTPublicKey: "%%%"}
	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected bearer config error")
	}
}

func TestSplitHosts(t *testing.T) {
	got := splitHosts(" planner.lan, ,10.0.0.2 ")
	if !slices.Equal(got, []string{"planner.lan", "10.0.0.2"}) {
		t.Fatalf("splitHosts = %v", got)
	}
	if splitHosts("") != nil {
		t.Fatal("expected nil hosts for empty input")
	}
}
