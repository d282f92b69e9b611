// Package config holds service-wide configuration for the scheduler.
//
// Config is built with functional options and is immutable after
// construction. RuntimeSettings holds the small subset of values the admin
// surface is allowed to mutate while the service is running; it is guarded
// by its own mutex and read on every VAD poll.
package config

import (
	"fmt"
	"log/slog"
	"time"
)

// Config holds the full set of service configuration.
type Config struct {
	// Host/port the call surface (telephony + WebRTC signaling) binds to.
	// The admin surface shares Host but listens on its own port.
	Host string
	Port int

	// LLMProvider selects the chat-completion backend ("openai", "anthropic", ...).
	LLMProvider string
	LLMModel    string
	LLMAPIKey   string

	// STTModelPath points at a local speech-to-text model, or is empty to
	// use a hosted STT provider configured via STTProviderURL.
	STTModelPath   string
	STTProviderURL string

	// TTSVoice and TTSEngine select the text-to-speech voice/engine.
	TTSVoice  string
	TTSEngine string

	// Telephony carries the media-stream transport's signing/auth material.
	TelephonyAccountSID string
	TelephonyAuthToken  string

	// Calendar identifies which calendar to book into and in what timezone.
	CalendarCredentialsPath string
	CalendarID              string
	CalendarTimezone        string

	// SearchServiceURL is the base URL of the listing-search service.
	SearchServiceURL string

	// AdminAPIKey gates the admin surface. Empty means no key is configured;
	// whether that allows or denies access depends on DebugOpen.
	AdminAPIKey string
	DebugOpen   bool

	// ICEServersFallbackJSON is used when the NAT-credential provider is
	// unreachable or unconfigured.
	ICEServersFallbackJSON string

	// Timeout bounds external calls (LLM, STT, TTS, tool, calendar).
	Timeout time.Duration

	// Logger is the structured logger used throughout the service.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             8080,
		LLMProvider:      "openai",
		LLMModel:         "gpt-4o-mini",
		TTSVoice:         "af_heart",
		TTSEngine:        "kokoro",
		CalendarTimezone: "America/New_York",
		Timeout:          30 * time.Second,
		Logger:           slog.Default(),
	}
}

// Option configures a Config.
type Option func(*Config)

// Apply applies the given options to c in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.LLMProvider == "" {
		return fmt.Errorf("config: llm provider is required")
	}
	if c.CalendarTimezone == "" {
		return fmt.Errorf("config: calendar timezone is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive")
	}
	return nil
}

// WithHostPort sets the call surface bind address.
func WithHostPort(host string, port int) Option {
	return func(c *Config) {
		c.Host = host
		c.Port = port
	}
}

// WithLLM sets the chat-completion provider, model, and API key.
func WithLLM(provider, model, apiKey string) Option {
	return func(c *Config) {
		c.LLMProvider = provider
		c.LLMModel = model
		c.LLMAPIKey = apiKey
	}
}

// WithSTT sets the speech-to-text backend.
func WithSTT(modelPath, providerURL string) Option {
	return func(c *Config) {
		c.STTModelPath = modelPath
		c.STTProviderURL = providerURL
	}
}

// WithTTS sets the text-to-speech voice and engine.
func WithTTS(voice, engine string) Option {
	return func(c *Config) {
		c.TTSVoice = voice
		c.TTSEngine = engine
	}
}

// WithTelephonyCredentials sets the telephony account credentials used to
// fetch NAT-traversal tokens.
func WithTelephonyCredentials(accountSID, authToken string) Option {
	return func(c *Config) {
		c.TelephonyAccountSID = accountSID
		c.TelephonyAuthToken = authToken
	}
}

// WithCalendar sets the calendar backend's credentials, target calendar, and timezone.
func WithCalendar(credentialsPath, calendarID, timezone string) Option {
	return func(c *Config) {
		c.CalendarCredentialsPath = credentialsPath
		c.CalendarID = calendarID
		if timezone != "" {
			c.CalendarTimezone = timezone
		}
	}
}

// WithSearchServiceURL sets the listing-search service base URL.
func WithSearchServiceURL(url string) Option {
	return func(c *Config) { c.SearchServiceURL = url }
}

// WithAdminAuth sets the admin API key and whether unauthenticated debug
// access is permitted when no key is configured.
func WithAdminAuth(apiKey string, debugOpen bool) Option {
	return func(c *Config) {
		c.AdminAPIKey = apiKey
		c.DebugOpen = debugOpen
	}
}

// WithICEFallback sets the static ICE server list used when the
// NAT-traversal credential provider is unavailable.
func WithICEFallback(serversJSON string) Option {
	return func(c *Config) { c.ICEServersFallbackJSON = serversJSON }
}

// WithTimeout sets the default timeout applied to external calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
