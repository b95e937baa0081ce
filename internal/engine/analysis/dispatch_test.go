package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
)

func resetConfig(t *testing.T) {
	t.Helper()
	prev := *engine.Cfg
	engine.Init(engine.Config{
		MaxContentChars:    10000,
		MaxAnalyzeChars:    8000,
		MinTranscriptChars: 100,
		CaptionLang:        "en",
		HTTPClient:         http.DefaultClient,
	})
	t.Cleanup(func() { engine.Init(prev) })
}

func TestExtractTextPassthrough(t *testing.T) {
	resetConfig(t)

	res := Extract(context.Background(), engine.KindText, "Vaccines cause no autism.")
	require.True(t, res.OK)
	require.Equal(t, "Vaccines cause no autism.", res.Text)
	require.Empty(t, res.Warnings)
}

func TestExtractTextTruncated(t *testing.T) {
	resetConfig(t)
	engine.Cfg.MaxContentChars = 100

	res := Extract(context.Background(), engine.KindText, strings.Repeat("x", 500))
	require.True(t, res.OK)
	require.Equal(t, 100, utf8.RuneCountInString(res.Text))
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "truncated")
}

func TestExtractLinkInvalidURL(t *testing.T) {
	resetConfig(t)

	for _, raw := range []string{
		"not a url",
		"ftp://example.com/file",
		"http://",
		"javascript:alert(1)",
	} {
		res := Extract(context.Background(), engine.KindLink, raw)
		require.False(t, res.OK, "url %q", raw)
		require.Equal(t, engine.ErrValidation, res.Err.Kind, "url %q", raw)
	}
}

func TestExtractLinkWebPage(t *testing.T) {
	resetConfig(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html><html><head><title>Budget approved</title></head><body>
			<article><h1>Budget approved</h1>
			<p>The city council approved the annual budget on Tuesday evening.</p>
			<p>The vote passed seven to two after a lengthy public comment session.</p>
			</article></body></html>`)
	}))
	defer srv.Close()

	res := Extract(context.Background(), engine.KindLink, srv.URL+"/news/budget")
	require.True(t, res.OK, "err: %v", res.Err)
	require.Contains(t, res.Text, "approved the annual budget")
	require.Equal(t, srv.URL+"/news/budget", res.SourceURL)
}

func TestExtractLinkVideoCaptions(t *testing.T) {
	resetConfig(t)

	captionText := strings.Repeat("The senator said the bill passed with bipartisan support. ", 4)
	srv := newCaptionServer(t, captionText)
	engine.Cfg.CaptionAPIBase = srv.URL

	videoURL := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	res := Extract(context.Background(), engine.KindLink, videoURL)
	require.True(t, res.OK, "err: %v", res.Err)
	require.Contains(t, res.Text, "bipartisan support")
	require.Equal(t, videoURL, res.SourceURL, "source URL must be the submitted URL")
}

func TestExtractLinkVideoCaptionsTooShort(t *testing.T) {
	resetConfig(t)

	srv := newCaptionServer(t, "Too short.")
	engine.Cfg.CaptionAPIBase = srv.URL

	res := Extract(context.Background(), engine.KindLink, "https://youtu.be/dQw4w9WgXcQ")
	require.False(t, res.OK)
	require.Equal(t, engine.ErrExtraction, res.Err.Kind)
	require.Contains(t, res.Err.Message, "no usable transcript")
}

func TestExtractUnknownKind(t *testing.T) {
	resetConfig(t)

	res := Extract(context.Background(), engine.InputKind("video"), "x")
	require.False(t, res.OK)
	require.Equal(t, engine.ErrValidation, res.Err.Kind)
}

// newCaptionServer fakes the caption track list plus a single en timedtext track.
func newCaptionServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/player") {
			json.NewEncoder(w).Encode(map[string]any{
				"captions": map[string]any{
					"playerCaptionsTracklistRenderer": map[string]any{
						"captionTracks": []map[string]any{
							{"baseUrl": srv.URL + "/timedtext", "languageCode": "en"},
						},
					},
				},
			})
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprintf(w, `<?xml version="1.0"?><transcript><text>%s</text></transcript>`, text)
	}))
	t.Cleanup(srv.Close)
	return srv
}
