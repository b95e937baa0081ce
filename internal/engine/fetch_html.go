package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// FetchURLContent extracts main text content from a URL using go-readability.
// Falls back to goquery, then regex-based extraction on failure. When the
// plain fetch is bot-blocked and a browser client is configured, the page is
// refetched with a browser TLS profile before giving up.
// The returned text is NOT length-capped; the dispatcher truncates and warns.
func FetchURLContent(ctx context.Context, rawURL string) (title, content string, err error) {
	metrics.FetchRequests.Add(1)
	defer func() {
		if err != nil {
			metrics.FetchErrors.Add(1)
		}
	}()

	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}

	body, err := fetchPageBody(ctx, rawURL)
	if err != nil {
		return "", "", err
	}

	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return extractWithGoquery(body)
	}

	md, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil {
		md = article.TextContent
	}
	text := strings.TrimSpace(md)
	if text == "" {
		return extractWithGoquery(body)
	}
	return article.Title, text, nil
}

// fetchPageBody fetches the page HTML, retrying bot blocks via the browser
// client when one is configured.
func fetchPageBody(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := fetchWithRetry(ctx, rawURL, true)
	if err == nil {
		defer resp.Body.Close()
		return readResponseBody(resp)
	}

	if cfg.BrowserClient == nil || !isBotBlocked(err) {
		return nil, err
	}

	body, status, berr := cfg.BrowserClient.Do(http.MethodGet, rawURL, ChromeHeaders(), nil)
	if berr != nil {
		return nil, fmt.Errorf("browser fetch: %w", berr)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("browser fetch: status %d", status)
	}
	return body, nil
}

// isBotBlocked reports whether the fetch error looks like bot filtering
// rather than a dead page.
func isBotBlocked(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "status 403") || strings.Contains(msg, "status 429") ||
		strings.Contains(msg, http.StatusText(http.StatusForbidden)) ||
		strings.Contains(msg, http.StatusText(http.StatusTooManyRequests))
}

// extractWithGoquery uses goquery for structured HTML parsing when
// readability fails to find an article.
func extractWithGoquery(body []byte) (title, content string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return extractWithRegex(body)
	}

	title = doc.Find("title").First().Text()
	if title == "" {
		doc.Find("meta[property=og:title]").Each(func(i int, s *goquery.Selection) {
			if title == "" {
				title, _ = s.Attr("content")
			}
		})
	}

	removeSelectors := []string{
		"script", "style", "noscript", "iframe", "svg",
		"header", "footer", "nav", "aside",
		".advertisement", ".ad", ".sidebar", ".comments",
		"[role=navigation]", "[role=banner]", "[role=contentinfo]",
	}
	doc.Find(strings.Join(removeSelectors, ", ")).Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	contentSel := doc.Find("article, main, .content, .post-content, .article-content, #content").First()
	if contentSel.Length() == 0 {
		contentSel = doc.Find("body")
	}

	content = squeezeText(contentSel.Text())
	return title, content, nil
}

// extractWithRegex strips HTML with regexes as a last resort.
func extractWithRegex(body []byte) (title, content string, err error) {
	page := string(body)

	titleRe := regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	if m := titleRe.FindStringSubmatch(page); len(m) > 1 {
		title = strings.TrimSpace(m[1])
	}
	if title == "" {
		ogTitleRe := regexp.MustCompile(`(?i)<meta[^>]*property=["']og:title["'][^>]*content=["']([^"']+)["']`)
		if m := ogTitleRe.FindStringSubmatch(page); len(m) > 1 {
			title = strings.TrimSpace(m[1])
		}
	}

	for _, tag := range []string{"script", "style", "noscript", "header", "footer", "nav", "aside", "iframe"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		page = re.ReplaceAllString(page, "")
	}
	content = squeezeText(htmlTagRe.ReplaceAllString(page, ""))
	return title, content, nil
}

var wsRunRe = regexp.MustCompile(`\s+`)

// squeezeText collapses whitespace runs and drops empty lines.
func squeezeText(s string) string {
	s = strings.TrimSpace(wsRunRe.ReplaceAllString(s, " "))
	lines := strings.Split(s, "\n")
	var clean []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			clean = append(clean, line)
		}
	}
	return strings.Join(clean, "\n")
}
