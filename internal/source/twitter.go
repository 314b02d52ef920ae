package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIBase    = "https://api.twitter.com/2"
	twitterSiteURL    = "https://x.com"
	twitterTimeout    = 15 * time.Second
	twitterUserAgent  = "tweetrelay/1.0"
	twitterMaxResults = 5
	twitterMaxErrBody = 4096
)

// ErrRateLimited signals that the API answered 429. It is a routed
// condition, not a failure: the caller is expected to switch to the
// fallback feed instead of retrying.
var ErrRateLimited = errors.New("twitter: rate limited")

// APIError is a non-2xx response from the Twitter API other than 429.
// Status and Body are kept for diagnostics.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter: status %d: %s", e.Status, e.Body)
}

// TwitterSource fetches the latest original tweet of an account via the
// v2 API using app-only bearer authentication.
type TwitterSource struct {
	token   string
	baseURL string
	siteURL string
	client  *http.Client
}

// NewTwitter creates a Twitter source. apiBase overrides the default
// https://api.twitter.com/2 endpoint when non-empty.
func NewTwitter(bearerToken, apiBase string) (*TwitterSource, error) {
	if strings.TrimSpace(bearerToken) == "" {
		return nil, errors.New("twitter: bearer token is required")
	}
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &TwitterSource{
		token:   bearerToken,
		baseURL: strings.TrimRight(apiBase, "/"),
		siteURL: twitterSiteURL,
		client:  &http.Client{Timeout: twitterTimeout},
	}, nil
}

// FetchLatest returns the most recent original tweet of handle, or nil
// if the account cannot be resolved or has no tweets. It never retries:
// a 429 surfaces immediately as ErrRateLimited so the caller can fall
// back without delay.
func (ts *TwitterSource) FetchLatest(ctx context.Context, handle string) (*Post, error) {
	ctx, cancel := context.WithTimeout(ctx, twitterTimeout)
	defer cancel()

	userID, err := ts.lookupUserID(ctx, handle)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, nil
	}

	tl, err := ts.fetchTimeline(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(tl.Data) == 0 {
		return nil, nil
	}

	// The listing is newest-first; the head is the canonical latest.
	tweet := tl.Data[0]

	createdAt := tweet.CreatedAt
	if createdAt == "" {
		createdAt = "unknown"
	}

	media := attachmentURLs(tweet, tl.Includes.Media)
	media = append(media, inlineImageURLs(tweet.Text)...)

	return &Post{
		ID:        tweet.ID,
		Text:      tweet.Text,
		CreatedAt: createdAt,
		URL:       fmt.Sprintf("%s/%s/status/%s", ts.siteURL, handle, tweet.ID),
		Media:     orderedUnique(media),
	}, nil
}

func (ts *TwitterSource) lookupUserID(ctx context.Context, handle string) (string, error) {
	var res userResponse
	reqURL := fmt.Sprintf("%s/users/by/username/%s", ts.baseURL, url.PathEscape(handle))
	if err := ts.get(ctx, reqURL, &res); err != nil {
		return "", err
	}
	return res.Data.ID, nil
}

func (ts *TwitterSource) fetchTimeline(ctx context.Context, userID string) (*timelineResponse, error) {
	q := url.Values{}
	q.Set("exclude", "replies,retweets")
	q.Set("max_results", strconv.Itoa(twitterMaxResults))
	q.Set("tweet.fields", "created_at,attachments")
	q.Set("expansions", "attachments.media_keys")
	q.Set("media.fields", "url,preview_image_url,type")

	var res timelineResponse
	reqURL := fmt.Sprintf("%s/users/%s/tweets?%s", ts.baseURL, url.PathEscape(userID), q.Encode())
	if err := ts.get(ctx, reqURL, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// get performs an authenticated GET and decodes the JSON response into
// out. 429 maps to ErrRateLimited, any other non-200 to *APIError.
func (ts *TwitterSource) get(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("twitter: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ts.token)
	req.Header.Set("User-Agent", twitterUserAgent)

	resp, err := ts.client.Do(req)
	if err != nil {
		return fmt.Errorf("twitter: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, twitterMaxErrBody))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("twitter: decode response: %w", err)
	}
	return nil
}

type userResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type timelineResponse struct {
	Data     []tweetObject `json:"data"`
	Includes struct {
		Media []mediaObject `json:"media"`
	} `json:"includes"`
}

type tweetObject struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type mediaObject struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}

// attachmentURLs resolves the tweet's declared media keys against the
// expanded includes payload, preferring the direct URL over the preview
// image when both are present.
func attachmentURLs(t tweetObject, includes []mediaObject) []string {
	if len(t.Attachments.MediaKeys) == 0 {
		return nil
	}
	keys := make(map[string]bool, len(t.Attachments.MediaKeys))
	for _, k := range t.Attachments.MediaKeys {
		keys[k] = true
	}

	var urls []string
	for _, m := range includes {
		if !keys[m.MediaKey] {
			continue
		}
		u := m.URL
		if u == "" {
			u = m.PreviewImageURL
		}
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
