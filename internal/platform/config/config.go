package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultBasePath            = "/api"
	defaultAuthMode            = AuthModeFirebase
	defaultCurrency            = "INR"
	defaultGatewayTimeout      = 15 * time.Second
	defaultSMTPPort            = 587
	defaultSMTPTimeout         = 10 * time.Second
	defaultEventsBackend       = EventsBackendNone
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultWebhookReplayTTL    = 72 * time.Hour
	defaultSecurityEnvironment = "local"
	defaultSecretFallbackFile  = ".secrets.local"
)

// Auth modes select how bearer tokens are verified.
const (
	AuthModeFirebase = "firebase"
	AuthModeJWT      = "jwt"
)

// Event backends select where order lifecycle events are published.
const (
	EventsBackendNone   = "none"
	EventsBackendPubSub = "pubsub"
	EventsBackendKafka  = "kafka"
)

// Config holds the runtime configuration grouped by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Auth        AuthConfig
	PSP         PSPConfig
	SMTP        SMTPConfig
	Events      EventsConfig
	Redis       RedisConfig
	Idempotency IdempotencyConfig
	Security    SecurityConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string
	BasePath     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores document store settings.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// AuthConfig selects the bearer token verifier.
type AuthConfig struct {
	Mode      string
	JWTSecret string
	JWTIssuer string
}

// PSPConfig holds payment gateway credentials. A gateway with empty credentials is unconfigured.
type PSPConfig struct {
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	StripeAPIKey          string
	StripeWebhookSecret   string
	Currency              string
	Timeout               time.Duration
}

// RazorpayEnabled reports whether gateway credentials are present.
func (c PSPConfig) RazorpayEnabled() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}

// StripeEnabled reports whether gateway credentials are present.
func (c PSPConfig) StripeEnabled() bool {
	return c.StripeAPIKey != ""
}

// SMTPConfig configures outbound email. Empty Host disables email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Enabled reports whether an SMTP relay is configured.
func (c SMTPConfig) Enabled() bool { return c.Host != "" }

// EventsConfig configures order event publishing.
type EventsConfig struct {
	Backend       string
	PubSubProject string
	PubSubTopic   string
	KafkaBrokers  []string
	KafkaTopic    string
}

// RedisConfig configures the optional Redis instance. Empty Addr keeps stores in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// IdempotencyConfig configures replay protection.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	WebhookReplayTTL time.Duration
}

// SecurityConfig carries environment level settings.
type SecurityConfig struct {
	Environment        string
	SecretFallbackFile string
	SecretProjectIDs   map[string]string
}

// SecretResolver resolves secret:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret implements SecretResolver.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists missing or invalid configuration fields.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns the offending field names.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes a failed secret reference resolution.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError reports required secrets that resolved to empty values.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the unredacted keys.
func (e *MissingSecretsError) Names() []string {
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

// RedactedNames returns hashed keys suitable for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		out = append(out, hex.EncodeToString(sum[:8]))
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the dotenv path. An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver installs the resolver used for secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		if resolver != nil {
			o.secret = resolver
		}
	}
}

// WithRequiredSecrets marks keys that must resolve to a non-empty value.
func WithRequiredSecrets(keys ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, keys...) }
}

func defaultOptions() loaderOptions {
	return loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
}

// EnvironmentValues returns the merged environment (dotenv < process env < explicit map)
// so callers can build dependencies such as the secret fetcher before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	values, err := readDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if ok && strings.TrimSpace(key) != "" {
				values[key] = value
			}
		}
	}
	for k, v := range options.envMap {
		values[k] = v
	}
	return values, nil
}

// Load builds Config from defaults, dotenv, the process environment and secret references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := readDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			BasePath:     stringWithDefault(lookup, "API_SERVER_BASE_PATH", defaultBasePath),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Auth: AuthConfig{
			Mode:      strings.ToLower(stringWithDefault(lookup, "API_AUTH_MODE", defaultAuthMode)),
			JWTSecret: stringWithDefault(lookup, "API_AUTH_JWT_SECRET", ""),
			JWTIssuer: stringWithDefault(lookup, "API_AUTH_JWT_ISSUER", ""),
		},
		PSP: PSPConfig{
			RazorpayKeyID:         stringWithDefault(lookup, "API_PSP_RAZORPAY_KEY_ID", ""),
			RazorpayKeySecret:     stringWithDefault(lookup, "API_PSP_RAZORPAY_KEY_SECRET", ""),
			RazorpayWebhookSecret: stringWithDefault(lookup, "API_PSP_RAZORPAY_WEBHOOK_SECRET", ""),
			StripeAPIKey:          stringWithDefault(lookup, "API_PSP_STRIPE_API_KEY", ""),
			StripeWebhookSecret:   stringWithDefault(lookup, "API_PSP_STRIPE_WEBHOOK_SECRET", ""),
			Currency:              strings.ToUpper(stringWithDefault(lookup, "API_PSP_CURRENCY", defaultCurrency)),
			Timeout:               durationWithDefault(lookup, "API_PSP_TIMEOUT", defaultGatewayTimeout),
		},
		SMTP: SMTPConfig{
			Host:     stringWithDefault(lookup, "API_SMTP_HOST", ""),
			Port:     intWithDefault(lookup, "API_SMTP_PORT", defaultSMTPPort),
			Username: stringWithDefault(lookup, "API_SMTP_USERNAME", ""),
			Password: stringWithDefault(lookup, "API_SMTP_PASSWORD", ""),
			From:     stringWithDefault(lookup, "API_SMTP_FROM", ""),
			Timeout:  durationWithDefault(lookup, "API_SMTP_TIMEOUT", defaultSMTPTimeout),
		},
		Events: EventsConfig{
			Backend:       strings.ToLower(stringWithDefault(lookup, "API_EVENTS_BACKEND", defaultEventsBackend)),
			PubSubProject: stringWithDefault(lookup, "API_EVENTS_PUBSUB_PROJECT_ID", ""),
			PubSubTopic:   stringWithDefault(lookup, "API_EVENTS_PUBSUB_TOPIC", ""),
			KafkaBrokers:  csvWithDefault(lookup, "API_EVENTS_KAFKA_BROKERS"),
			KafkaTopic:    stringWithDefault(lookup, "API_EVENTS_KAFKA_TOPIC", ""),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "API_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "API_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "API_REDIS_DB", 0),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			WebhookReplayTTL: durationWithDefault(lookup, "API_WEBHOOK_REPLAY_TTL", defaultWebhookReplayTTL),
		},
		Security: SecurityConfig{
			Environment:        stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment),
			SecretFallbackFile: stringWithDefault(lookup, "API_SECRET_FALLBACK_FILE", defaultSecretFallbackFile),
			SecretProjectIDs:   mapWithDefault(lookup, "API_SECRET_PROJECT_IDS"),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.PubSubProject == "" {
		cfg.Events.PubSubProject = cfg.Firestore.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		key    string
		target *string
	}{
		{"API_AUTH_JWT_SECRET", &cfg.Auth.JWTSecret},
		{"API_PSP_RAZORPAY_KEY_SECRET", &cfg.PSP.RazorpayKeySecret},
		{"API_PSP_RAZORPAY_WEBHOOK_SECRET", &cfg.PSP.RazorpayWebhookSecret},
		{"API_PSP_STRIPE_API_KEY", &cfg.PSP.StripeAPIKey},
		{"API_PSP_STRIPE_WEBHOOK_SECRET", &cfg.PSP.StripeWebhookSecret},
		{"API_SMTP_PASSWORD", &cfg.SMTP.Password},
		{"API_REDIS_PASSWORD", &cfg.Redis.Password},
	}
	for _, field := range secretFields {
		value, err := resolveSecret(ctx, *field.target, options.secret)
		if err != nil {
			return Config{}, fmt.Errorf("resolve %s: %w", field.key, err)
		}
		*field.target = value
		resolved[field.key] = value
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		invalid = append(invalid, "Firestore.ProjectID")
	}
	switch cfg.Auth.Mode {
	case AuthModeFirebase:
		if cfg.Firebase.ProjectID == "" {
			invalid = append(invalid, "Firebase.ProjectID")
		}
	case AuthModeJWT:
		if cfg.Auth.JWTSecret == "" {
			invalid = append(invalid, "Auth.JWTSecret")
		}
	default:
		invalid = append(invalid, "Auth.Mode")
	}
	if cfg.PSP.RazorpayKeyID != "" && cfg.PSP.RazorpayKeySecret == "" {
		invalid = append(invalid, "PSP.RazorpayKeySecret")
	}
	if len(cfg.PSP.Currency) != 3 {
		invalid = append(invalid, "PSP.Currency")
	}
	if cfg.PSP.Timeout <= 0 {
		invalid = append(invalid, "PSP.Timeout")
	}
	if cfg.SMTP.Enabled() && cfg.SMTP.From == "" {
		invalid = append(invalid, "SMTP.From")
	}
	switch cfg.Events.Backend {
	case EventsBackendNone:
	case EventsBackendPubSub:
		if cfg.Events.PubSubTopic == "" {
			invalid = append(invalid, "Events.PubSubTopic")
		}
	case EventsBackendKafka:
		if len(cfg.Events.KafkaBrokers) == 0 {
			invalid = append(invalid, "Events.KafkaBrokers")
		}
		if cfg.Events.KafkaTopic == "" {
			invalid = append(invalid, "Events.KafkaTopic")
		}
	default:
		invalid = append(invalid, "Events.Backend")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "secret://") && !strings.HasPrefix(trimmed, "sm://") {
		return value, nil
	}
	ref := "secret://" + strings.TrimPrefix(strings.TrimPrefix(trimmed, "secret://"), "sm://")
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	var names []string
	seen := make(map[string]struct{})
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(resolved[name]) == "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &MissingSecretsError{names: names}
}

func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("load dotenv %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	value, ok := lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// mapWithDefault parses "k1=v1,k2=v2".
func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	out := make(map[string]string)
	for _, pair := range csvWithDefault(lookup, key) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
