// schedulerd runs the voice scheduling service: it accepts telephony and
// WebRTC calls, drives each through a workflow-defined conversation, and
// exposes an admin HTTP+WS surface for inspecting and tuning live calls.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voxdial/scheduler/internal/config"
	"github.com/voxdial/scheduler/internal/log"
	"github.com/voxdial/scheduler/pkg/admin"
	"github.com/voxdial/scheduler/pkg/calendar"
	"github.com/voxdial/scheduler/pkg/gateway"
	"github.com/voxdial/scheduler/pkg/ice"
	"github.com/voxdial/scheduler/pkg/llm"
	"github.com/voxdial/scheduler/pkg/search"
	"github.com/voxdial/scheduler/pkg/stt"
	"github.com/voxdial/scheduler/pkg/tool"
	"github.com/voxdial/scheduler/pkg/tts"
	"github.com/voxdial/scheduler/pkg/workflow"
)

func main() {
	_ = godotenv.Load()

	cfg, adminPort, workflowDir, defaultWorkflow, logLevel := parseFlags()
	log.Init(logLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	workflows := workflow.NewRegistry()
	if err := workflows.LoadDir(workflowDir); err != nil {
		log.Error("failed to load workflows", "dir", workflowDir, "error", err)
		os.Exit(1)
	}
	if _, ok := workflows.Get(defaultWorkflow); !ok {
		log.Error("default workflow not found in registry", "workflow", defaultWorkflow, "dir", workflowDir)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	calendarProvider, err := buildCalendarProvider(ctx, cfg)
	if err != nil {
		log.Error("failed to build calendar provider", "error", err)
		os.Exit(1)
	}

	loc := calendarLocation(cfg)
	window := calendar.DefaultBusinessWindow(loc)

	tools := tool.NewRegistry()
	tools.Register(tool.NewApartmentSearchTool(buildSearchClient(cfg)))
	tools.Register(tool.NewCheckAvailabilityTool(calendarProvider, window, nil))
	tools.Register(tool.NewCreateBookingTool(calendarProvider, loc, window.SlotMinutes))

	iceProvider := buildICEProvider(cfg)
	iceFallback := buildICEFallback(cfg)

	gw := gateway.New(
		workflows, defaultWorkflow,
		buildLLMClient(cfg), tools,
		buildSTTProvider(cfg), buildTTSProvider(cfg),
		iceProvider, iceFallback,
	)

	runtime := config.DefaultRuntimeSettings()
	adminSrv := admin.New(cfg.Host, adminPort, cfg.AdminAPIKey, cfg.DebugOpen, runtime, workflows)
	adminSrv.StartAsync(func(err error) {
		log.Error("admin surface stopped", "error", err)
	})
	log.Info("admin surface listening", "host", cfg.Host, "port", adminPort)

	mux := http.NewServeMux()
	mux.HandleFunc("/voice/telephony", gw.TelephonyHandler)
	mux.HandleFunc("/voice/webrtc", gw.SignalingHandler)

	callSrv := &http.Server{
		Addr:              cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("call surface listening", "host", cfg.Host, "port", cfg.Port)
		if err := callSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("call surface stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	callSrv.Shutdown(shutdownCtx)
	adminSrv.Shutdown()
}

func parseFlags() (*config.Config, int, string, string, string) {
	cfg := config.DefaultConfig()

	host := flag.String("host", cfg.Host, "bind address for the call surface")
	port := flag.Int("port", cfg.Port, "port for the call surface (telephony + webrtc signaling)")
	adminPort := flag.Int("admin-port", 8081, "port for the admin HTTP+WS surface")

	llmProvider := flag.String("llm-provider", cfg.LLMProvider, "chat-completion backend identifier")
	llmModel := flag.String("llm-model", cfg.LLMModel, "chat-completion model identifier")

	ttsVoice := flag.String("tts-voice", cfg.TTSVoice, "text-to-speech voice")
	ttsEngine := flag.String("tts-engine", cfg.TTSEngine, "text-to-speech engine")

	calendarID := flag.String("calendar-id", cfg.CalendarID, "target calendar id")
	calendarTZ := flag.String("calendar-timezone", cfg.CalendarTimezone, "calendar timezone (IANA name)")
	calendarCreds := flag.String("calendar-credentials", cfg.CalendarCredentialsPath, "path to Google service-account credentials JSON; empty uses an in-memory calendar")

	searchURL := flag.String("search-url", cfg.SearchServiceURL, "listing-search service base URL; empty uses a fixture listing set")

	adminDebugOpen := flag.Bool("admin-debug-open", false, "allow unauthenticated admin access when no admin API key is configured")

	workflowDir := flag.String("workflow-dir", "data/workflows", "directory of *.jsonl workflow definitions")
	defaultWorkflow := flag.String("default-workflow", "apartment_viewing", "workflow name new calls start on")

	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")

	flag.Parse()

	cfg.Host = *host
	cfg.Port = *port
	cfg.LLMProvider = *llmProvider
	cfg.LLMModel = *llmModel
	cfg.TTSVoice = *ttsVoice
	cfg.TTSEngine = *ttsEngine
	cfg.CalendarID = *calendarID
	cfg.CalendarTimezone = *calendarTZ
	cfg.CalendarCredentialsPath = *calendarCreds
	cfg.SearchServiceURL = *searchURL
	cfg.DebugOpen = *adminDebugOpen

	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	cfg.AdminAPIKey = os.Getenv("ADMIN_API_KEY")
	cfg.TelephonyAccountSID = os.Getenv("TELEPHONY_ACCOUNT_SID")
	cfg.TelephonyAuthToken = os.Getenv("TELEPHONY_AUTH_TOKEN")
	cfg.ICEServersFallbackJSON = os.Getenv("ICE_SERVERS_FALLBACK_JSON")

	return cfg, *adminPort, *workflowDir, *defaultWorkflow, *logLevel
}

// calendarLocation resolves the configured timezone, falling back to UTC
// (and logging once) if it does not name a known IANA zone.
func calendarLocation(cfg *config.Config) *time.Location {
	loc, err := time.LoadLocation(cfg.CalendarTimezone)
	if err != nil {
		log.Warn("unknown calendar timezone, falling back to UTC", "timezone", cfg.CalendarTimezone, "error", err)
		return time.UTC
	}
	return loc
}

// buildLLMClient wires the chat-completion contract. No concrete SDK ships
// here; operators swap in a real provider by replacing this function.
func buildLLMClient(cfg *config.Config) llm.Client {
	return llm.NewMock("I'm sorry, I didn't catch that. Could you say that again?")
}

// buildSearchClient wires the listing-search contract. No concrete RAG
// backend ships here; operators point SearchServiceURL at a real service
// and replace this function with an HTTP-backed search.Client.
func buildSearchClient(cfg *config.Config) search.Client {
	return search.NewMock(
		search.Listing{Address: "221B Baker St", Neighborhood: "Downtown", Bedrooms: 2, Bathrooms: 1, RentCents: 250000, Available: true},
		search.Listing{Address: "10 Ocean Ave", Neighborhood: "Riverside", Bedrooms: 1, Bathrooms: 1, RentCents: 180000, Available: true},
	)
}

func buildSTTProvider(cfg *config.Config) stt.Provider {
	return stt.NewMock("")
}

func buildTTSProvider(cfg *config.Config) tts.Provider {
	return tts.NewMock()
}

func buildCalendarProvider(ctx context.Context, cfg *config.Config) (calendar.Provider, error) {
	if cfg.CalendarCredentialsPath == "" {
		return calendar.NewMock(calendar.DefaultBusinessWindow(calendarLocation(cfg))), nil
	}
	return calendar.NewGoogleProvider(ctx, cfg.CalendarCredentialsPath, cfg.CalendarID, cfg.CalendarTimezone)
}

func buildICEProvider(cfg *config.Config) ice.CredentialProvider {
	provider := ice.NewTwilioNTS(cfg.TelephonyAccountSID, cfg.TelephonyAuthToken)
	if provider == nil {
		return nil
	}
	return provider
}

func defaultICEFallback() []ice.Server {
	return []ice.Server{{URLs: []string{"stun:stun.l.google.com:19302"}}}
}

func buildICEFallback(cfg *config.Config) []ice.Server {
	if cfg.ICEServersFallbackJSON == "" {
		return defaultICEFallback()
	}
	var servers []ice.Server
	if err := json.Unmarshal([]byte(cfg.ICEServersFallbackJSON), &servers); err != nil {
		log.Warn("invalid ICE_SERVERS_FALLBACK_JSON, using stun default", "error", err)
		return defaultICEFallback()
	}
	return servers
}
