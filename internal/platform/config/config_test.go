package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func hermeticOptions(env map[string]string, extra ...Option) []Option {
	opts := []Option{WithEnvFile(""), WithoutSystemEnv(), WithEnvMap(env)}
	return append(opts, extra...)
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	cfg, err := Load(context.Background(), hermeticOptions(map[string]string{
		"API_FIRESTORE_PROJECT_ID":       "brewcoin-dev",
		"API_SERVER_PORT":                "9090",
		"API_SERVER_READ_TIMEOUT":        "5s",
		"API_TELEGRAM_LOCATION_CHANNELS": "loc-central=chat-central,loc-north=chat-north",
		"API_SECURITY_OIDC_ISSUERS":      "https://accounts.google.com",
	})...)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.PubSub.ProjectID != "brewcoin-dev" {
		t.Errorf("pubsub project must fall back to firestore project, got %q", cfg.PubSub.ProjectID)
	}
	if cfg.Telegram.LocationChannels["loc-north"] != "chat-north" {
		t.Errorf("unexpected location channels %v", cfg.Telegram.LocationChannels)
	}
	if len(cfg.Security.OIDC.Issuers) != 1 || cfg.Security.OIDC.Issuers[0] != "https://accounts.google.com" {
		t.Errorf("unexpected issuers %v", cfg.Security.OIDC.Issuers)
	}
	if cfg.Idempotency.Header == "" || cfg.Idempotency.TTL <= 0 {
		t.Errorf("idempotency defaults not applied: %+v", cfg.Idempotency)
	}
}

func TestLoadValidatesRequiredFields(t *testing.T) {
	_, err := Load(context.Background(), hermeticOptions(map[string]string{})...)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, field := range validation.Fields() {
		if field == "Firestore.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Errorf("Firestore.ProjectID not reported in %v", validation.Fields())
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://telegram-bot-token" {
			t.Errorf("unexpected ref %q", ref)
		}
		return "tok_resolved", nil
	})

	cfg, err := Load(context.Background(), hermeticOptions(map[string]string{
		"API_FIRESTORE_PROJECT_ID": "brewcoin-dev",
		"API_TELEGRAM_BOT_TOKEN":   "sm://telegram-bot-token",
	}, WithSecretResolver(resolver))...)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "tok_resolved" {
		t.Errorf("bot token = %q, want tok_resolved", cfg.Telegram.BotToken)
	}
}

func TestLoadSecretResolverFailure(t *testing.T) {
	resolver := SecretResolverFunc(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("access denied")
	})

	_, err := Load(context.Background(), hermeticOptions(map[string]string{
		"API_FIRESTORE_PROJECT_ID": "brewcoin-dev",
		"API_TELEGRAM_BOT_TOKEN":   "secret://telegram-bot-token",
	}, WithSecretResolver(resolver))...)
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
}

func TestLoadReportsMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(), hermeticOptions(map[string]string{
		"API_FIRESTORE_PROJECT_ID": "brewcoin-dev",
	}, WithRequiredSecrets("Telegram.BotToken"))...)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	names := missing.Names()
	if len(names) != 1 || names[0] != "Telegram.BotToken" {
		t.Errorf("unexpected missing secrets %v", names)
	}
}
