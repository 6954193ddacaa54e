package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIREBASE_PROJECT_ID": "watch-dev",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(baseEnv()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Server.BasePath != "/api" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Firestore.ProjectID != "watch-dev" {
		t.Fatalf("expected firestore project to default to firebase project, got %q", cfg.Firestore.ProjectID)
	}
	if cfg.PSP.Currency != "INR" || cfg.PSP.Timeout != 15*time.Second {
		t.Fatalf("unexpected psp defaults %+v", cfg.PSP)
	}
	if cfg.PSP.RazorpayEnabled() || cfg.PSP.StripeEnabled() || cfg.SMTP.Enabled() {
		t.Fatalf("expected optional providers to be unconfigured")
	}
	if cfg.Events.Backend != EventsBackendNone {
		t.Fatalf("expected events disabled, got %q", cfg.Events.Backend)
	}
}

func TestLoadPrecedenceDotEnvBelowEnvMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "API_FIREBASE_PROJECT_ID=from-file\nAPI_SERVER_PORT=9000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path), WithEnvMap(map[string]string{
		"API_SERVER_PORT": "7000",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Fatalf("expected env map to win, got %q", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "from-file" {
		t.Fatalf("expected dotenv value, got %q", cfg.Firebase.ProjectID)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["API_PSP_RAZORPAY_KEY_ID"] = "rzp_test_1"
	env["API_PSP_RAZORPAY_KEY_SECRET"] = "sm://razorpay-secret"

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://razorpay-secret" {
			t.Fatalf("unexpected ref %q", ref)
		}
		return "resolved", nil
	})

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(env), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PSP.RazorpayKeySecret != "resolved" || !cfg.PSP.RazorpayEnabled() {
		t.Fatalf("expected resolved secret, got %+v", cfg.PSP)
	}
}

func TestLoadSecretWithoutResolverFails(t *testing.T) {
	env := baseEnv()
	env["API_PSP_STRIPE_API_KEY"] = "secret://stripe"

	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(env))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
}

func TestLoadRequiredSecretsMissing(t *testing.T) {
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(baseEnv()),
		WithRequiredSecrets("API_PSP_RAZORPAY_WEBHOOK_SECRET"))
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "API_PSP_RAZORPAY_WEBHOOK_SECRET" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestLoadValidation(t *testing.T) {
	env := map[string]string{
		"API_AUTH_MODE":           "jwt",
		"API_EVENTS_BACKEND":      "kafka",
		"API_PSP_RAZORPAY_KEY_ID": "rzp_live",
	}
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(env))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{
		"Firestore.ProjectID":   true,
		"Auth.JWTSecret":        true,
		"PSP.RazorpayKeySecret": true,
		"Events.KafkaBrokers":   true,
		"Events.KafkaTopic":     true,
	}
	got := vErr.Fields()
	if len(got) != len(want) {
		t.Fatalf("unexpected fields %v", got)
	}
	for _, f := range got {
		if !want[f] {
			t.Fatalf("unexpected field %q", f)
		}
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	values, err := EnvironmentValues(WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{"A": "1"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values["A"] != "1" {
		t.Fatalf("expected explicit value, got %v", values)
	}
}
