package analysis

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
)

// Analyze runs the full pipeline for one submission: rate limit, validate,
// extract, sanitize, model call, cache, persist. callerID identifies the
// caller for rate limiting; empty is bucketed under a shared sentinel.
func Analyze(ctx context.Context, callerID string, in engine.AnalysisInput) (*engine.AnalysisOutput, *engine.Error) {
	engine.IncrAnalyzeRequests()

	decision := engine.CheckLimit(ctx, callerID)
	if !decision.Allowed {
		return nil, &engine.Error{
			Kind:       engine.ErrRateLimited,
			Message:    "rate limit exceeded",
			RetryAfter: decision.RetryAfter,
		}
	}

	if !engine.ValidKind(in.Kind) {
		return nil, engine.Errorf(engine.ErrValidation, "unknown kind %q", in.Kind)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, engine.Errorf(engine.ErrValidation, "content is empty")
	}
	if engine.Cfg.LLMClient == nil {
		return nil, engine.Errorf(engine.ErrMisconfigured, "analysis model not configured")
	}

	// Fingerprint over the raw submission, before any extraction: the same
	// input always maps to the same result regardless of upstream variance.
	fp := engine.Fingerprint(in.Kind, in.Content)
	if cached, ok := engine.CacheGet(ctx, fp); ok {
		cached.Meta.Cached = true
		return &cached, nil
	}

	out, analyzeErr := runPipeline(ctx, in, fp)
	if analyzeErr != nil {
		return nil, analyzeErr
	}

	engine.CacheSet(ctx, fp, *out)
	go persist(in.Kind, out)
	return out, nil
}

func runPipeline(ctx context.Context, in engine.AnalysisInput, fp string) (*engine.AnalysisOutput, *engine.Error) {
	meta := engine.Meta{Fingerprint: fp, Kind: string(in.Kind)}

	var out *engine.AnalysisOutput
	var err error

	switch in.Kind {
	case engine.KindImage:
		dataURI, vErr := imageDataURI(in.Content)
		if vErr != nil {
			return nil, vErr
		}
		out, err = engine.AnalyzeMedia(ctx, dataURI)

	default: // text, link, audio
		res := Extract(ctx, in.Kind, in.Content)
		meta.Warnings = res.Warnings
		if !res.OK {
			return nil, res.Err
		}
		meta.SourceURL = res.SourceURL
		meta.Title = res.Title
		text := engine.Sanitize(res.Text, engine.Cfg.MaxAnalyzeChars)
		if text == "" {
			return nil, engine.Errorf(engine.ErrExtraction, "nothing analyzable after sanitization")
		}
		out, err = engine.AnalyzeText(ctx, text)
	}

	if err != nil {
		return nil, engine.Errorf(engine.ErrUnexpected, "analysis model: %v", err)
	}
	meta.Warnings = append(meta.Warnings, out.Meta.Warnings...)
	out.Meta = meta
	return out, nil
}

// imageDataURI validates base64 image content and normalizes it to a data URI.
func imageDataURI(content string) (string, *engine.Error) {
	content = strings.TrimSpace(content)
	payload := content
	if strings.HasPrefix(content, "data:") {
		meta, data, found := strings.Cut(strings.TrimPrefix(content, "data:"), ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return "", engine.Errorf(engine.ErrValidation, "image payload is not a base64 data URI")
		}
		payload = data
	} else {
		content = "data:image/jpeg;base64," + content
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", engine.Errorf(engine.ErrValidation, "image payload: invalid base64: %v", err)
	}
	return content, nil
}

// persist records the finished analysis best-effort: failures are logged and
// counted, never surfaced to the caller.
func persist(kind engine.InputKind, out *engine.AnalysisOutput) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s := GetStore(); s != nil {
		if err := s.SaveAnalysis(ctx, kind, out); err != nil {
			engine.IncrPersistenceFailures()
			slog.Warn("analysis persist failed", slog.Any("error", err))
		}
	}
	if h := GetHistory(); h != nil {
		if err := h.Add(ctx, kind, out); err != nil {
			engine.IncrPersistenceFailures()
			slog.Warn("history persist failed", slog.Any("error", err))
		}
	}
}
