package sources

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
)

// Client for a Whisper-style batch transcription service. The lifecycle is
// submit (multipart upload) -> poll until a terminal status -> download the
// SRT transcript. The upload is never retried: a duplicate submission would
// start a second paid job. Poll failures are transient by assumption and
// only consume an attempt.

type transcriptionJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	jobStatusProcessing = "processing"
	jobStatusDone       = "done"
	jobStatusFailed     = "failed"
)

// Transcribe uploads base64 audio to the transcription service and waits for
// the transcript. payload is either a data URI (data:<mediatype>;base64,...)
// or bare base64. Returns the flattened transcript text plus warnings.
func Transcribe(ctx context.Context, payload string) (string, []string, *engine.Error) {
	if engine.Cfg.TranscribeAPIBase == "" {
		return "", nil, engine.Errorf(engine.ErrMisconfigured, "transcription service not configured")
	}

	audio, mediaType, err := decodeAudioPayload(payload)
	if err != nil {
		return "", nil, engine.Errorf(engine.ErrValidation, "audio payload: %v", err)
	}

	engine.IncrTranscriptionJobs()

	job, submitErr := submitJob(ctx, audio, mediaType)
	if submitErr != nil {
		engine.IncrTranscriptionErrors()
		return "", nil, submitErr
	}

	if waitErr := waitForJob(ctx, job.ID); waitErr != nil {
		engine.IncrTranscriptionErrors()
		return "", nil, waitErr
	}

	doc, dlErr := downloadTranscript(ctx, job.ID)
	if dlErr != nil {
		engine.IncrTranscriptionErrors()
		return "", nil, dlErr
	}

	segments := ParseSRT(doc)
	text := FlattenSegments(segments)

	var warnings []string
	if dropped := countInstrumental(segments); dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("dropped %d instrumental segment(s)", dropped))
	}

	if len([]rune(text)) < engine.Cfg.MinTranscriptChars {
		engine.IncrTranscriptionErrors()
		return "", warnings, engine.Errorf(engine.ErrExtraction,
			"transcript too short to analyze (%d chars)", len([]rune(text)))
	}
	return text, warnings, nil
}

// decodeAudioPayload accepts a data URI or bare base64 and returns the raw
// audio bytes plus the declared media type ("" when bare).
func decodeAudioPayload(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	mediaType := ""
	if strings.HasPrefix(payload, "data:") {
		rest := strings.TrimPrefix(payload, "data:")
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", fmt.Errorf("data URI missing comma separator")
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("data URI is not base64-encoded")
		}
		mediaType = strings.TrimSuffix(meta, ";base64")
		payload = data
	}
	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("empty audio payload")
	}
	return audio, mediaType, nil
}

// submitJob uploads the audio as multipart form data. Exactly one attempt.
func submitJob(ctx context.Context, audio []byte, mediaType string) (*transcriptionJob, *engine.Error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio")
	if err != nil {
		return nil, engine.Errorf(engine.ErrUnexpected, "build upload: %v", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, engine.Errorf(engine.ErrUnexpected, "build upload: %v", err)
	}
	if mediaType != "" {
		if err := mw.WriteField("media_type", mediaType); err != nil {
			return nil, engine.Errorf(engine.ErrUnexpected, "build upload: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, engine.Errorf(engine.ErrUnexpected, "build upload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		engine.Cfg.TranscribeAPIBase+"/v1/jobs", &body)
	if err != nil {
		return nil, engine.Errorf(engine.ErrUnexpected, "build upload: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	setAPIKey(req)

	resp, err := engine.Cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, engine.Errorf(engine.ErrExtraction, "transcription upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, engine.Errorf(engine.ErrExtraction,
			"transcription upload rejected: status %d", resp.StatusCode)
	}

	var job transcriptionJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, engine.Errorf(engine.ErrExtraction, "transcription upload: decode response: %v", err)
	}
	if job.ID == "" {
		return nil, engine.Errorf(engine.ErrExtraction, "transcription upload: response has no job id")
	}
	return &job, nil
}

// waitForJob polls job status until done, failed, or the attempt budget is
// spent. A failed status check consumes an attempt but does not abort:
// transient poll errors must not kill an otherwise healthy job.
func waitForJob(ctx context.Context, jobID string) *engine.Error {
	interval := engine.Cfg.TranscribePollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	maxPolls := engine.Cfg.TranscribeMaxPolls
	if maxPolls <= 0 {
		maxPolls = 60
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return engine.Errorf(engine.ErrUpstreamTimeout, "transcription canceled: %v", ctx.Err())
		case <-ticker.C:
		}

		job, err := pollJob(ctx, jobID)
		if err != nil {
			slog.Warn("transcription poll failed",
				slog.String("job_id", jobID),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			continue
		}

		switch job.Status {
		case jobStatusDone:
			return nil
		case jobStatusFailed:
			msg := job.Error
			if msg == "" {
				msg = "no detail"
			}
			return engine.Errorf(engine.ErrExtraction, "transcription job failed: %s", msg)
		default:
			// processing or an unknown intermediate status: keep waiting
		}
	}
	return engine.Errorf(engine.ErrUpstreamTimeout,
		"transcription job %s still running after %d polls", jobID, maxPolls)
}

func pollJob(ctx context.Context, jobID string) (*transcriptionJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		engine.Cfg.TranscribeAPIBase+"/v1/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	setAPIKey(req)

	resp, err := engine.Cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var job transcriptionJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &job, nil
}

func downloadTranscript(ctx context.Context, jobID string) (string, *engine.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		engine.Cfg.TranscribeAPIBase+"/v1/jobs/"+jobID+"/transcript.srt", nil)
	if err != nil {
		return "", engine.Errorf(engine.ErrUnexpected, "build download: %v", err)
	}
	setAPIKey(req)

	resp, err := engine.Cfg.HTTPClient.Do(req)
	if err != nil {
		return "", engine.Errorf(engine.ErrExtraction, "transcript download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", engine.Errorf(engine.ErrExtraction, "transcript download: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return "", engine.Errorf(engine.ErrExtraction, "transcript download: %v", err)
	}
	return string(body), nil
}

func setAPIKey(req *http.Request) {
	if engine.Cfg.TranscribeAPIKey != "" {
		req.Header.Set("X-API-Key", engine.Cfg.TranscribeAPIKey)
	}
}

func countInstrumental(segments []Segment) int {
	n := 0
	for _, s := range segments {
		if s.Instrumental {
			n++
		}
	}
	return n
}
