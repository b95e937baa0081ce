package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
)

// Caption fetching for short-video links. Uses the ANDROID Innertube /player
// endpoint to list caption tracks for a video id, then fetches the selected
// track's timedtext XML. A preferred-language track is tried first; on an
// empty or absent result, exactly one fallback fetch without a language
// preference is issued before giving up.

const (
	playerPath       = "/youtubei/v1/player"
	ytAndroidVersion = "20.10.38"
	ytAndroidUA      = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"
)

// --- ANDROID client types (/player endpoint) ---

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type innertubePlayerResp struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// --- Timedtext XML types ---

type timedText struct {
	Lines []timedTextLine `xml:"text"`
}

type timedTextLine struct {
	Text string `xml:",chardata"`
}

// Video ids are always 11 URL-safe base64 characters.
var (
	shortsPathRe   = regexp.MustCompile(`^/shorts/([A-Za-z0-9_-]{11})$`)
	shortLinkRe    = regexp.MustCompile(`^/([A-Za-z0-9_-]{11})$`)
	videoIDValueRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// VideoID extracts the video id from a short-video URL, reporting whether
// the URL matches a known platform pattern.
func VideoID(u *url.URL) (string, bool) {
	path := u.Path
	if path == "/watch" {
		id := u.Query().Get("v")
		if videoIDValueRe.MatchString(id) {
			return id, true
		}
		return "", false
	}
	if m := shortsPathRe.FindStringSubmatch(path); m != nil {
		return m[1], true
	}
	if strings.HasSuffix(u.Hostname(), "youtu.be") {
		if m := shortLinkRe.FindStringSubmatch(path); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// FetchCaptions fetches caption text for a video id, preferring the
// configured caption language. Returns the caption text plus any warnings
// accumulated (language fallback).
func FetchCaptions(ctx context.Context, videoID string) (string, []string, error) {
	engine.IncrCaptionRequests()

	tracks, err := fetchCaptionTracks(ctx, videoID)
	if err != nil {
		return "", nil, err
	}
	if len(tracks) == 0 {
		return "", nil, errors.New("no caption tracks")
	}

	var warnings []string

	// Preferred-language fetch first.
	tried := ""
	if track, ok := pickTrack(tracks, engine.Cfg.CaptionLang); ok {
		tried = track.BaseURL
		text, err := fetchTimedText(ctx, track.BaseURL)
		if err == nil && text != "" {
			return text, warnings, nil
		}
	}

	// One fallback fetch without a language preference, skipping the track
	// already tried.
	remaining := tracks
	if tried != "" {
		remaining = make([]captionTrack, 0, len(tracks))
		for _, t := range tracks {
			if t.BaseURL != tried {
				remaining = append(remaining, t)
			}
		}
	}
	track, ok := pickTrack(remaining, "")
	if !ok {
		if tried != "" {
			return "", warnings, errors.New("empty captions in all languages")
		}
		return "", warnings, errors.New("all caption tracks require PoToken")
	}
	text, err := fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return "", warnings, fmt.Errorf("fallback track: %w", err)
	}
	if text == "" {
		return "", warnings, errors.New("empty captions in all languages")
	}
	warnings = append(warnings, "caption language fallback: "+track.LanguageCode)
	return text, warnings, nil
}

// fetchCaptionTracks lists caption tracks via the ANDROID Innertube /player
// endpoint. Works from non-blocked (residential/cloud) IP addresses.
func fetchCaptionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	endpoint := engine.Cfg.CaptionAPIBase + playerPath + "?prettyPrint=false"
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		if err := waitThrottle(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ytAndroidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("android innertube: %w", err)
	}
	defer resp.Body.Close()

	var playerResp innertubePlayerResp
	if err := json.NewDecoder(resp.Body).Decode(&playerResp); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	if playerResp.Captions == nil {
		reason := ""
		if playerResp.PlayabilityStatus != nil {
			reason = playerResp.PlayabilityStatus.Reason
		}
		if reason != "" {
			return nil, fmt.Errorf("captions unavailable: %s", reason)
		}
		return nil, errors.New("no captions in player response")
	}
	return playerResp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

// needsPoToken reports whether a caption track URL requires a PoToken
// (browser-only). Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack selects a usable caption track. With lang set, only tracks in
// that language are considered (manual tracks before auto-generated ones).
// With lang empty, the best usable track of any language is returned.
func pickTrack(tracks []captionTrack, lang string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}

	if lang != "" {
		// Manual track in the requested language, then auto-generated.
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
		return captionTrack{}, false
	}

	// No preference: any English track, then whatever is first.
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// fetchTimedText fetches and parses a timedtext XML caption URL.
func fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		if err := waitThrottle(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return "", err
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		text := engine.CleanHTML(line.Text)
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}

// waitThrottle blocks on the outbound caption throttle when one is configured.
func waitThrottle(ctx context.Context) error {
	if engine.Cfg.CaptionThrottle == nil {
		return nil
	}
	return engine.Cfg.CaptionThrottle.Wait(ctx)
}
