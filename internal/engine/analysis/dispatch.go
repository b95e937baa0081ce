// Package analysis routes submitted content through extraction, sanitization
// and the analysis model, and persists results best-effort.
package analysis

import (
	"context"
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
	"github.com/anatolykoptev/go_factcheck/internal/engine/sources"
)

// Extract resolves submitted content to analyzable text. Routing:
//
//	text  -> pass-through
//	link  -> caption extraction for recognized video URLs, page fetch otherwise
//	audio -> batch transcription
//
// Every path converges on ExtractionResult; oversized text is truncated to
// the configured cap with a warning rather than rejected.
func Extract(ctx context.Context, kind engine.InputKind, content string) engine.ExtractionResult {
	switch kind {
	case engine.KindText:
		return capped(engine.ExtractOK(content))
	case engine.KindLink:
		return extractLink(ctx, content)
	case engine.KindAudio:
		text, warnings, err := sources.Transcribe(ctx, content)
		if err != nil {
			engine.IncrExtractionFailures()
			return engine.ExtractFailed(err, warnings...)
		}
		return capped(engine.ExtractOK(text, warnings...))
	default:
		return engine.ExtractFailed(engine.Errorf(engine.ErrValidation, "kind %q is not extractable", kind))
	}
}

func extractLink(ctx context.Context, rawURL string) engine.ExtractionResult {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return engine.ExtractFailed(engine.Errorf(engine.ErrValidation, "not a valid http(s) URL: %q", rawURL))
	}

	if videoID, ok := sources.VideoID(u); ok {
		return extractCaptions(ctx, rawURL, videoID)
	}

	title, content, err := engine.FetchURLContent(ctx, rawURL)
	if err != nil {
		engine.IncrExtractionFailures()
		return engine.ExtractFailed(engine.Errorf(engine.ErrExtraction, "fetch page: %v", err))
	}
	return capped(engine.ExtractionResult{OK: true, Text: content, Title: title, SourceURL: rawURL})
}

func extractCaptions(ctx context.Context, rawURL, videoID string) engine.ExtractionResult {
	text, warnings, err := sources.FetchCaptions(ctx, videoID)
	if err != nil {
		engine.IncrExtractionFailures()
		return engine.ExtractFailed(
			engine.Errorf(engine.ErrExtraction, "no usable transcript for video %s: %v", videoID, err),
			warnings...)
	}
	if utf8.RuneCountInString(text) < engine.Cfg.MinTranscriptChars {
		engine.IncrExtractionFailures()
		return engine.ExtractFailed(
			engine.Errorf(engine.ErrExtraction, "no usable transcript for video %s: captions too short", videoID),
			warnings...)
	}
	res := engine.ExtractionResult{OK: true, Text: text, SourceURL: rawURL, Warnings: warnings}
	return capped(res)
}

// capped truncates oversized extracted text, recording a warning.
func capped(res engine.ExtractionResult) engine.ExtractionResult {
	limit := engine.Cfg.MaxContentChars
	if limit <= 0 || utf8.RuneCountInString(res.Text) <= limit {
		return res
	}
	res.Text = engine.TruncateRunes(res.Text, limit, "")
	res.Warnings = append(res.Warnings,
		fmt.Sprintf("content truncated to %d characters", limit))
	return res
}
