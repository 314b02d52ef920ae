package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

// newTestTwitter points a TwitterSource at a local test server.
func newTestTwitter(t *testing.T, handler http.Handler) *TwitterSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ts, err := NewTwitter("test-token", srv.URL)
	if err != nil {
		t.Fatalf("NewTwitter: %v", err)
	}
	return ts
}

func userJSON(id string) string {
	if id == "" {
		return `{"data":{}}`
	}
	return `{"data":{"id":"` + id + `"}}`
}

func TestNewTwitter(t *testing.T) {
	t.Run("empty token", func(t *testing.T) {
		_, err := NewTwitter("", "")
		if err == nil {
			t.Fatal("expected error for empty token")
		}
	})

	t.Run("default base", func(t *testing.T) {
		ts, err := NewTwitter("tok", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ts.baseURL != defaultAPIBase {
			t.Errorf("baseURL = %q, want %q", ts.baseURL, defaultAPIBase)
		}
	})
}

func TestTwitterFetchLatest(t *testing.T) {
	timeline := map[string]any{
		"data": []map[string]any{
			{
				"id":         "100",
				"text":       "update notice https://pic.example/inline.png with details",
				"created_at": "2025-11-02T09:00:00.000Z",
				"attachments": map[string]any{
					"media_keys": []string{"3_a", "3_b"},
				},
			},
			{"id": "99", "text": "older"},
		},
		"includes": map[string]any{
			"media": []map[string]any{
				{"media_key": "3_a", "type": "photo", "url": "https://pbs.example/a.jpg"},
				{"media_key": "3_b", "type": "video", "preview_image_url": "https://pbs.example/b-preview.jpg"},
				{"media_key": "3_unrelated", "type": "photo", "url": "https://pbs.example/other.jpg"},
			},
		},
	}

	var gotAuth string
	ts := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users/by/username/nikke":
			_, _ = w.Write([]byte(userJSON("42")))
		case "/users/42/tweets":
			q := r.URL.Query()
			if q.Get("exclude") != "replies,retweets" {
				t.Errorf("exclude = %q", q.Get("exclude"))
			}
			if q.Get("max_results") != "5" {
				t.Errorf("max_results = %q", q.Get("max_results"))
			}
			if q.Get("expansions") != "attachments.media_keys" {
				t.Errorf("expansions = %q", q.Get("expansions"))
			}
			if q.Get("tweet.fields") != "created_at,attachments" {
				t.Errorf("tweet.fields = %q", q.Get("tweet.fields"))
			}
			if q.Get("media.fields") != "url,preview_image_url,type" {
				t.Errorf("media.fields = %q", q.Get("media.fields"))
			}
			_ = json.NewEncoder(w).Encode(timeline)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	post, err := ts.FetchLatest(context.Background(), "nikke")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if post == nil {
		t.Fatal("expected a post")
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("authorization = %q, want bearer token", gotAuth)
	}
	if post.ID != "100" {
		t.Errorf("id = %q, want 100", post.ID)
	}
	if post.URL != "https://x.com/nikke/status/100" {
		t.Errorf("url = %q", post.URL)
	}
	if post.CreatedAt != "2025-11-02T09:00:00.000Z" {
		t.Errorf("createdAt = %q", post.CreatedAt)
	}

	// Attachment URLs first (direct url preferred over preview), then
	// the inline URL scanned from text.
	want := []string{
		"https://pbs.example/a.jpg",
		"https://pbs.example/b-preview.jpg",
		"https://pic.example/inline.png",
	}
	if !reflect.DeepEqual(post.Media, want) {
		t.Errorf("media = %v, want %v", post.Media, want)
	}
}

func TestTwitterFetchLatest_MediaDedupe(t *testing.T) {
	// The same URL appears both as a structured attachment and inline
	// in the text: it must collapse to one entry, keeping the first
	// occurrence's position.
	timeline := map[string]any{
		"data": []map[string]any{
			{
				"id":   "7",
				"text": "look https://pbs.example/a.jpg",
				"attachments": map[string]any{
					"media_keys": []string{"3_a"},
				},
			},
		},
		"includes": map[string]any{
			"media": []map[string]any{
				{"media_key": "3_a", "type": "photo", "url": "https://pbs.example/a.jpg"},
			},
		},
	}

	ts := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/by/username/h" {
			_, _ = w.Write([]byte(userJSON("1")))
			return
		}
		_ = json.NewEncoder(w).Encode(timeline)
	}))

	post, err := ts.FetchLatest(context.Background(), "h")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	want := []string{"https://pbs.example/a.jpg"}
	if !reflect.DeepEqual(post.Media, want) {
		t.Errorf("media = %v, want %v", post.Media, want)
	}
}

func TestTwitterFetchLatest_MissingCreatedAt(t *testing.T) {
	ts := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/by/username/h" {
			_, _ = w.Write([]byte(userJSON("1")))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"5","text":"hi"}]}`))
	}))

	post, err := ts.FetchLatest(context.Background(), "h")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if post.CreatedAt != "unknown" {
		t.Errorf("createdAt = %q, want unknown", post.CreatedAt)
	}
}

func TestTwitterFetchLatest_RateLimited(t *testing.T) {
	tests := []struct {
		name       string
		lookupCode int
		tweetsCode int
	}{
		{name: "on lookup", lookupCode: http.StatusTooManyRequests, tweetsCode: http.StatusOK},
		{name: "on timeline", lookupCode: http.StatusOK, tweetsCode: http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/users/by/username/h" {
					if tt.lookupCode != http.StatusOK {
						w.WriteHeader(tt.lookupCode)
						return
					}
					_, _ = w.Write([]byte(userJSON("1")))
					return
				}
				if tt.tweetsCode != http.StatusOK {
					w.WriteHeader(tt.tweetsCode)
					return
				}
				_, _ = w.Write([]byte(`{"data":[]}`))
			}))

			_, err := ts.FetchLatest(context.Background(), "h")
			if !errors.Is(err, ErrRateLimited) {
				t.Fatalf("err = %v, want ErrRateLimited", err)
			}
		})
	}
}

func TestTwitterFetchLatest_UpstreamError(t *testing.T) {
	ts := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"title":"Forbidden"}`))
	}))

	_, err := ts.FetchLatest(context.Background(), "h")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", apiErr.Status)
	}
	if apiErr.Body != `{"title":"Forbidden"}` {
		t.Errorf("body = %q", apiErr.Body)
	}
}

func TestTwitterFetchLatest_Absent(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		ts := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(userJSON("")))
		}))

		post, err := ts.FetchLatest(context.Background(), "ghost")
		if err != nil {
			t.Fatalf("FetchLatest: %v", err)
		}
		if post != nil {
			t.Errorf("post = %+v, want nil", post)
		}
	})

	t.Run("empty timeline", func(t *testing.T) {
		ts := newTestTwitter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/users/by/username/h" {
				_, _ = w.Write([]byte(userJSON("1")))
				return
			}
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))

		post, err := ts.FetchLatest(context.Background(), "h")
		if err != nil {
			t.Fatalf("FetchLatest: %v", err)
		}
		if post != nil {
			t.Errorf("post = %+v, want nil", post)
		}
	})
}

func TestOrderedUnique(t *testing.T) {
	in := []string{"a", "b", "a", "", "c", "b"}
	want := []string{"a", "b", "c"}
	if got := orderedUnique(in); !reflect.DeepEqual(got, want) {
		t.Errorf("orderedUnique = %v, want %v", got, want)
	}
	// Idempotent: applying it again changes nothing.
	if got := orderedUnique(want); !reflect.DeepEqual(got, want) {
		t.Errorf("second pass = %v, want %v", got, want)
	}
}

func TestInlineImageURLs(t *testing.T) {
	text := "pics https://a.example/x.JPG and https://b.example/y.png, not https://c.example/page"
	want := []string{"https://a.example/x.JPG", "https://b.example/y.png"}
	if got := inlineImageURLs(text); !reflect.DeepEqual(got, want) {
		t.Errorf("inlineImageURLs = %v, want %v", got, want)
	}
}
