// go_factcheck — content ingestion & analysis HTTP service.
//
// Accepts user-submitted content (plain text, a link, an image, or an audio
// clip), normalizes it into analyzable text, and asks an LLM for a structured
// credibility verdict. The ingestion pipeline lives in internal/engine/ and
// internal/engine/sources/; the HTTP surface in internal/server/.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
	"github.com/anatolykoptev/go_factcheck/internal/engine/analysis"
	"github.com/anatolykoptev/go_factcheck/internal/server"
	"github.com/anatolykoptev/go_factcheck/internal/store"
)

var (
	version  = "dev"
	httpPort = env.Str("HTTP_PORT", "8890")
)

func main() {
	initEngine()

	slog.Info("starting go_factcheck",
		slog.String("port", httpPort),
		slog.String("version", version),
	)

	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           server.New(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Audio requests block on the transcription poll loop (up to 180s).
		WriteTimeout: 240 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", slog.Any("error", err))
	}
}

func initEngine() {
	c := engine.Config{
		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:           env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.1),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 8192),

		MaxContentChars:    env.Int("MAX_CONTENT_CHARS", 10000),
		MaxAnalyzeChars:    env.Int("MAX_ANALYZE_CHARS", 8000),
		MinTranscriptChars: env.Int("MIN_TRANSCRIPT_CHARS", 100),
		FetchTimeout:       env.Duration("FETCH_TIMEOUT", 10*time.Second),

		CaptionAPIBase: env.Str("CAPTION_API_BASE", "https://www.youtube.com"),
		CaptionLang:    env.Str("CAPTION_LANG", "en"),

		TranscribeAPIBase:      env.Str("TRANSCRIBE_API_BASE", ""),
		TranscribeAPIKey:       env.Str("TRANSCRIBE_API_KEY", ""),
		TranscribePollInterval: env.Duration("TRANSCRIBE_POLL_INTERVAL", 3*time.Second),
		TranscribeMaxPolls:     env.Int("TRANSCRIBE_MAX_POLLS", 60),

		RateLimitCapacity: env.Int("RATE_LIMIT_CAPACITY", 10),
		RateLimitWindow:   env.Duration("RATE_LIMIT_WINDOW", 60*time.Second),

		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),

		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},

		// Politeness throttle on outbound caption endpoints: 2 req/s, small burst.
		CaptionThrottle: rate.NewLimiter(rate.Every(500*time.Millisecond), 4),
	}

	if bc, err := engine.NewBrowserClient(); err != nil {
		slog.Warn("browser client init failed, bot-blocked pages will not be retried", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
	}

	if c.LLMAPIKey == "" {
		slog.Warn("LLM_API_KEY not set, analyze requests will be rejected")
	} else {
		c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		)
	}

	engine.Init(c)

	redisURL := env.Str("REDIS_URL", "")
	engine.InitLimiter(redisURL, c.RateLimitCapacity, c.RateLimitWindow)
	engine.InitCache(redisURL, env.Duration("CACHE_TTL", 15*time.Minute), c.CacheMaxEntries, c.CacheCleanupInterval)

	// Analysis persistence: Postgres when configured, local SQLite history otherwise.
	if dbURL := env.Str("DATABASE_URL", ""); dbURL != "" {
		db, err := store.Connect(context.Background(), dbURL)
		if err != nil {
			slog.Warn("analysis DB init failed, running without persistence", slog.Any("error", err))
		} else {
			analysis.SetStore(db)
			slog.Info("analysis DB initialized")
		}
	} else {
		hist, err := store.OpenHistory(env.Str("HISTORY_DIR", ""))
		if err != nil {
			slog.Warn("local history init failed", slog.Any("error", err))
		} else {
			analysis.SetHistory(hist)
			slog.Info("local history initialized")
		}
	}
}
