package engine

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"golang.org/x/time/rate"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	LLMClient          *llm.Client

	MaxContentChars    int // extraction output cap; longer text is truncated with a warning
	MaxAnalyzeChars    int // sanitizer cap on text handed to the model
	MinTranscriptChars int // transcripts/captions below this are not analyzable
	FetchTimeout       time.Duration

	CaptionAPIBase  string        // caption source base URL; overridable for tests
	CaptionLang     string        // preferred caption language
	CaptionThrottle *rate.Limiter // politeness throttle on caption endpoints, nil = unthrottled

	TranscribeAPIBase      string // batch transcription service; empty = audio kind disabled
	TranscribeAPIKey       string
	TranscribePollInterval time.Duration
	TranscribeMaxPolls     int

	RateLimitCapacity int
	RateLimitWindow   time.Duration

	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HTTPClient    *http.Client
	BrowserClient *BrowserClient // nil = bot-blocked pages are not retried
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (analysis, sources).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
