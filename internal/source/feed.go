package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const (
	feedTimeout   = 15 * time.Second
	feedUserAgent = "tweetrelay/1.0"
	feedMaxBody   = 4 << 20
)

// FeedSource fetches the latest post from an unauthenticated feed
// mirror, best effort. It understands the JSON Feed shape emitted by
// rss.app and falls back to RSS/Atom parsing for nitter-style mirrors.
type FeedSource struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewFeed creates a fallback feed source for the given feed URL.
func NewFeed(feedURL string) (*FeedSource, error) {
	if strings.TrimSpace(feedURL) == "" {
		return nil, errors.New("feed: url is required")
	}
	return &FeedSource{
		url:    feedURL,
		client: &http.Client{Timeout: feedTimeout},
		now:    time.Now,
	}, nil
}

// FetchLatest returns the first item of the feed, or nil if the feed is
// empty. Errors carry no rate-limit semantics; callers treat any
// failure from this source as "no post available".
func (fs *FeedSource) FetchLatest(ctx context.Context) (*Post, error) {
	ctx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fs.url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: create request: %w", err)
	}
	req.Header.Set("User-Agent", feedUserAgent)

	resp, err := fs.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, feedMaxBody))
	if err != nil {
		return nil, fmt.Errorf("feed: read body: %w", err)
	}

	if looksLikeJSON(body) {
		return fs.parseJSONFeed(body)
	}
	return fs.parseXMLFeed(body)
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// jsonFeed is the subset of the JSON Feed 1.1 document we consume.
// The media list of URL strings is an rss.app extension.
type jsonFeed struct {
	Items []jsonFeedItem `json:"items"`
}

type jsonFeedItem struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	DatePublished string   `json:"date_published"`
	Media         []string `json:"media"`
	ContentHTML   string   `json:"content_html"`
}

func (fs *FeedSource) parseJSONFeed(body []byte) (*Post, error) {
	var feed jsonFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("feed: parse json: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, nil
	}
	item := feed.Items[0]

	text := strings.TrimSpace(item.Title)
	if text == "" {
		text = strings.TrimSpace(item.Description)
	}

	media := absoluteURLs(item.Media)
	if len(media) == 0 {
		media = htmlImageURLs(item.ContentHTML)
	}

	createdAt := item.DatePublished
	if createdAt == "" {
		createdAt = fs.now().Format(time.RFC3339)
	}

	return &Post{
		ID:        deriveID(item.URL),
		Text:      text,
		CreatedAt: createdAt,
		URL:       item.URL,
		Media:     orderedUnique(media),
	}, nil
}

func (fs *FeedSource) parseXMLFeed(body []byte) (*Post, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("feed: parse: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, nil
	}
	item := feed.Items[0]

	text := strings.TrimSpace(item.Title)
	if text == "" {
		text = strings.TrimSpace(item.Description)
	}

	var media []string
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			media = append(media, enc.URL)
		}
	}
	media = absoluteURLs(media)
	if len(media) == 0 {
		media = htmlImageURLs(item.Content)
	}
	if len(media) == 0 {
		media = htmlImageURLs(item.Description)
	}

	createdAt := ""
	if item.PublishedParsed != nil {
		createdAt = item.PublishedParsed.Format(time.RFC3339)
	}
	if createdAt == "" {
		createdAt = fs.now().Format(time.RFC3339)
	}

	return &Post{
		ID:        deriveID(item.Link),
		Text:      text,
		CreatedAt: createdAt,
		URL:       item.Link,
		Media:     orderedUnique(media),
	}, nil
}

// deriveID extracts the trailing status id from a tweet permalink. URLs
// without a /status/ segment get a content hash of the URL instead, so
// the id stays stable across runs over identical input.
func deriveID(rawURL string) string {
	if idx := strings.Index(rawURL, "/status/"); idx >= 0 {
		tail := rawURL[idx+len("/status/"):]
		if cut := strings.IndexAny(tail, "/?#"); cut >= 0 {
			tail = tail[:cut]
		}
		if tail != "" {
			return tail
		}
	}
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:8])
}

// htmlImageURLs extracts <img src> values from an HTML fragment in
// document order. Best effort: a fragment that cannot be parsed yields
// no URLs.
func htmlImageURLs(fragment string) []string {
	if !strings.Contains(fragment, "<img") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var urls []string
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			urls = append(urls, src)
		}
	})
	return urls
}

// absoluteURLs keeps only entries that look like absolute HTTP(S) URLs.
func absoluteURLs(urls []string) []string {
	var out []string
	for _, u := range urls {
		l := strings.ToLower(u)
		if strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") {
			out = append(out, u)
		}
	}
	return out
}
