package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		wantID string
		wantOK bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"watch with extra params", "https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", true},
		{"shorts", "https://www.youtube.com/shorts/aBcDeFgHiJk", "aBcDeFgHiJk", true},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"watch without v", "https://www.youtube.com/watch", "", false},
		{"bad id length", "https://www.youtube.com/watch?v=short", "", false},
		{"plain article", "https://example.com/article/dQw4w9WgXcQ", "", false},
		{"channel page", "https://www.youtube.com/@somechannel", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.rawURL)
			require.NoError(t, err)
			id, ok := VideoID(u)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantID, id)
		})
	}
}

// captionServer fakes the Innertube /player endpoint plus timedtext URLs.
// tracks maps language code to caption text; empty text simulates an empty
// timedtext document for that track.
func captionServer(t *testing.T, tracks map[string]string) (*httptest.Server, *int) {
	t.Helper()
	timedtextFetches := 0
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/youtubei/v1/player"):
			var resp innertubePlayerResp
			resp.Captions = &struct {
				PlayerCaptionsTracklistRenderer struct {
					CaptionTracks []captionTrack `json:"captionTracks"`
				} `json:"playerCaptionsTracklistRenderer"`
			}{}
			for lang := range tracks {
				resp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks = append(
					resp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks,
					captionTrack{BaseURL: srv.URL + "/timedtext/" + lang, LanguageCode: lang},
				)
			}
			json.NewEncoder(w).Encode(resp)
		case strings.HasPrefix(r.URL.Path, "/timedtext/"):
			timedtextFetches++
			lang := strings.TrimPrefix(r.URL.Path, "/timedtext/")
			text := tracks[lang]
			w.Header().Set("Content-Type", "text/xml")
			if text == "" {
				fmt.Fprint(w, `<?xml version="1.0"?><transcript></transcript>`)
				return
			}
			fmt.Fprintf(w, `<?xml version="1.0"?><transcript><text start="0" dur="2">%s</text></transcript>`, text)
		default:
			http.NotFound(w, r)
		}
	}))
	return srv, &timedtextFetches
}

func withCaptionBase(t *testing.T, base string) {
	t.Helper()
	prev := *engine.Cfg
	engine.Cfg.CaptionAPIBase = base
	engine.Cfg.CaptionLang = "en"
	engine.Cfg.HTTPClient = http.DefaultClient
	engine.Cfg.CaptionThrottle = nil
	t.Cleanup(func() { *engine.Cfg = prev })
}

func TestFetchCaptionsPreferredLanguage(t *testing.T) {
	srv, fetches := captionServer(t, map[string]string{"en": "Hello from the captions"})
	defer srv.Close()
	withCaptionBase(t, srv.URL)

	text, warnings, err := FetchCaptions(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Equal(t, "Hello from the captions", text)
	require.Empty(t, warnings)
	require.Equal(t, 1, *fetches, "preferred-language hit should fetch timedtext once")
}

func TestFetchCaptionsLanguageFallback(t *testing.T) {
	srv, fetches := captionServer(t, map[string]string{"de": "Hallo aus den Untertiteln"})
	defer srv.Close()
	withCaptionBase(t, srv.URL)

	text, warnings, err := FetchCaptions(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Equal(t, "Hallo aus den Untertiteln", text)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "caption language fallback: de")
	require.Equal(t, 1, *fetches, "no en track listed: exactly one fallback fetch")
}

func TestFetchCaptionsEmptyPreferredThenFallback(t *testing.T) {
	srv, fetches := captionServer(t, map[string]string{"en": "", "fr": "Bonjour"})
	defer srv.Close()
	withCaptionBase(t, srv.URL)

	text, warnings, err := FetchCaptions(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Equal(t, "Bonjour", text)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "caption language fallback")
	require.Equal(t, 2, *fetches, "empty preferred track plus exactly one fallback fetch")
}

func TestFetchCaptionsNoTracks(t *testing.T) {
	srv, _ := captionServer(t, map[string]string{})
	defer srv.Close()
	withCaptionBase(t, srv.URL)

	_, _, err := FetchCaptions(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
}

func TestFetchCaptionsAllEmpty(t *testing.T) {
	srv, _ := captionServer(t, map[string]string{"en": ""})
	defer srv.Close()
	withCaptionBase(t, srv.URL)

	_, _, err := FetchCaptions(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty captions")
}

func TestPickTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u1&exp=xpe", LanguageCode: "en"},
		{BaseURL: "u2", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "u3", LanguageCode: "de"},
	}

	// Manual en is PoToken-gated: asr en wins for lang="en".
	got, ok := pickTrack(tracks, "en")
	require.True(t, ok)
	require.Equal(t, "u2", got.BaseURL)

	// No preference: any en first.
	got, ok = pickTrack(tracks, "")
	require.True(t, ok)
	require.Equal(t, "u2", got.BaseURL)

	// Requested language absent entirely.
	_, ok = pickTrack(tracks, "ja")
	require.False(t, ok)

	// All tracks gated.
	_, ok = pickTrack([]captionTrack{{BaseURL: "x&exp=xpe", LanguageCode: "en"}}, "")
	require.False(t, ok)
}
