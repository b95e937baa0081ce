package engine

import (
	"strings"
	"testing"
)

func TestNewBrowserClient(t *testing.T) {
	bc, err := NewBrowserClient()
	if err != nil {
		t.Fatalf("NewBrowserClient() error = %v", err)
	}
	if bc == nil {
		t.Fatal("NewBrowserClient() returned nil")
	}
	if bc.client == nil {
		t.Fatal("BrowserClient.client is nil")
	}
}

func TestChromeHeaders(t *testing.T) {
	h := ChromeHeaders()

	for _, key := range []string{"accept", "accept-language", "accept-encoding", "user-agent"} {
		if h[key] == "" {
			t.Errorf("ChromeHeaders() missing key %q", key)
		}
	}
	if !strings.HasPrefix(h["user-agent"], "Mozilla/5.0") {
		t.Errorf("user-agent does not look like a browser: %q", h["user-agent"])
	}
	if !strings.Contains(h["accept"], "text/html") {
		t.Errorf("accept header does not request HTML: %q", h["accept"])
	}
}
