package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"--token-secret", "s3cr3t"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Addr != "0.0.0.0:80" {
		t.Fatalf("addr: %q", cfg.Addr)
	}
	if cfg.TokenTTL != 120*time.Second {
		t.Fatalf("token ttl: %v", cfg.TokenTTL)
	}
	if cfg.ResendCooldown != time.Minute || cfg.PollInterval != 5*time.Second {
		t.Fatalf("unexpected timers: %+v", cfg)
	}
	if cfg.SMTP.Enabled() {
		t.Fatalf("smtp should be disabled without a host")
	}
	if cfg.Url() != "http://localhost:80" {
		t.Fatalf("url: %q", cfg.Url())
	}
}

func TestParseMissingSecret(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("QSURVEY_TOKEN_SECRET", "from-env")
	t.Setenv("QSURVEY_SMTP_HOST", "smtp.example.com")
	t.Setenv("QSURVEY_RESEND_COOLDOWN", "90s")
	cfg, err := Parse([]string{"--port", "8080"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.TokenSecret != "from-env" {
		t.Fatalf("secret: %q", cfg.TokenSecret)
	}
	if !cfg.SMTP.Enabled() || cfg.SMTP.Host != "smtp.example.com" {
		t.Fatalf("smtp: %+v", cfg.SMTP)
	}
	if cfg.ResendCooldown != 90*time.Second {
		t.Fatalf("cooldown: %v", cfg.ResendCooldown)
	}
	if cfg.Addr != "0.0.0.0:8080" {
		t.Fatalf("addr: %q", cfg.Addr)
	}
}

func TestParseBadTimezone(t *testing.T) {
	if _, err := Parse([]string{"--token-secret", "x", "--timezone", "Nowhere/Void"}); err == nil {
		t.Fatalf("expected timezone error")
	}
}

func TestParseRejectsNonPositivePollInterval(t *testing.T) {
	for _, v := range []string{"0", "-5s"} {
		if _, err := Parse([]string{"--token-secret", "x", "--poll-interval=" + v}); err == nil {
			t.Fatalf("poll interval %s accepted", v)
		}
	}

	t.Setenv("QSURVEY_POLL_INTERVAL", "0")
	if _, err := Parse([]string{"--token-secret", "x"}); err == nil {
		t.Fatalf("poll interval from env accepted")
	}
}
