package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ppiankov/tweetrelay/internal/source"
)

// DeliveryPolicy controls how the keyword filter affects delivery.
type DeliveryPolicy string

const (
	// DeliverAll forwards every novel post; keyword matches are only
	// flagged as highlighted for presentation.
	DeliverAll DeliveryPolicy = "all"

	// DeliverKeywordMatch forwards only posts whose text contains one
	// of the configured keywords. Discarded posts are not marked
	// delivered, so a later matching post with the same id still goes
	// out.
	DeliverKeywordMatch DeliveryPolicy = "keyword_match"
)

// Outcome classifies what a single poll cycle did.
type Outcome int

const (
	// OutcomeDelivered means a novel post from the primary source was
	// handed to the notifier.
	OutcomeDelivered Outcome = iota

	// OutcomeNoNewPost means the cycle completed without delivering:
	// nothing fetched, nothing novel, or the post was filtered out.
	OutcomeNoNewPost

	// OutcomeFallbackUsed means the primary was rate limited and the
	// feed mirror was consulted. Post is set when the mirror produced
	// a novel post that was delivered.
	OutcomeFallbackUsed

	// OutcomeError means the cycle aborted: an upstream failure or a
	// delivery failure. The tracker is left untouched so the next
	// cycle retries naturally.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeNoNewPost:
		return "no new post"
	case OutcomeFallbackUsed:
		return "fallback used"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result reports the outcome of one poll cycle.
type Result struct {
	Outcome Outcome
	Post    *source.Post // set when a post was delivered
	Err     error        // set when Outcome is OutcomeError
}

// Primary fetches the latest post via the authenticated API. A 429
// surfaces as source.ErrRateLimited.
type Primary interface {
	FetchLatest(ctx context.Context, handle string) (*source.Post, error)
}

// Fallback fetches the latest post via the unauthenticated feed mirror.
type Fallback interface {
	FetchLatest(ctx context.Context) (*source.Post, error)
}

// Notifier delivers a post to the chat channel. highlighted marks posts
// whose text matched a configured keyword.
type Notifier interface {
	Deliver(ctx context.Context, post *source.Post, highlighted bool) error
}

// Options tune the keyword filter.
type Options struct {
	Keywords []string       // substrings to match against post text
	Policy   DeliveryPolicy // defaults to DeliverAll
}

// Relay runs the poll cycle for one watched account.
type Relay struct {
	handle   string
	primary  Primary
	fallback Fallback
	notifier Notifier
	tracker  *Tracker
	keywords []string
	policy   DeliveryPolicy

	// Serializes scheduled cycles against manual checks. Two
	// interleaved cycles could both see the same post as undelivered
	// and double-send it.
	mu sync.Mutex
}

// New creates a relay for handle. All collaborators are required.
func New(handle string, primary Primary, fallback Fallback, notifier Notifier, opts Options) (*Relay, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, errors.New("relay: handle is required")
	}
	if primary == nil {
		return nil, errors.New("relay: primary source is required")
	}
	if fallback == nil {
		return nil, errors.New("relay: fallback source is required")
	}
	if notifier == nil {
		return nil, errors.New("relay: notifier is required")
	}

	policy := opts.Policy
	if policy == "" {
		policy = DeliverAll
	}
	switch policy {
	case DeliverAll, DeliverKeywordMatch:
	default:
		return nil, fmt.Errorf("relay: unknown delivery policy %q", policy)
	}

	return &Relay{
		handle:   handle,
		primary:  primary,
		fallback: fallback,
		notifier: notifier,
		tracker:  NewTracker(),
		keywords: opts.Keywords,
		policy:   policy,
	}, nil
}

// RunOnce executes one poll cycle: primary fetch, fallback on rate
// limit, dedupe, keyword filter, delivery. Cycles never run
// concurrently; a manual check blocks until the scheduled cycle is
// done.
func (r *Relay) RunOnce(ctx context.Context) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, err := r.primary.FetchLatest(ctx, r.handle)
	switch {
	case errors.Is(err, source.ErrRateLimited):
		log.Printf("[relay] primary rate limited, trying fallback feed")
		return r.runFallback(ctx)
	case err != nil:
		log.Printf("[relay] primary fetch failed: %v", err)
		return Result{Outcome: OutcomeError, Err: err}
	case post == nil:
		return Result{Outcome: OutcomeNoNewPost}
	}

	if !r.tracker.IsNovel(post.ID) {
		return Result{Outcome: OutcomeNoNewPost}
	}
	return r.deliver(ctx, post, OutcomeDelivered)
}

// runFallback consults the feed mirror. The mirror is itself the
// degradation path, so its failures are logged and absorbed, never
// raised. Its ids are advisory: they are compared against the last
// delivered id whatever source produced it.
func (r *Relay) runFallback(ctx context.Context) Result {
	post, err := r.fallback.FetchLatest(ctx)
	if err != nil {
		log.Printf("[relay] fallback fetch failed: %v", err)
		return Result{Outcome: OutcomeFallbackUsed}
	}
	if post == nil || !r.tracker.IsNovel(post.ID) {
		return Result{Outcome: OutcomeFallbackUsed}
	}
	return r.deliver(ctx, post, OutcomeFallbackUsed)
}

// deliver applies the keyword filter, hands the post to the notifier,
// and marks it delivered. Marking happens only after the notifier
// confirms, so a failed delivery is retried by the next cycle.
func (r *Relay) deliver(ctx context.Context, post *source.Post, outcome Outcome) Result {
	highlighted := matchesKeyword(post.Text, r.keywords)

	if r.policy == DeliverKeywordMatch && len(r.keywords) > 0 && !highlighted {
		if outcome == OutcomeFallbackUsed {
			return Result{Outcome: OutcomeFallbackUsed}
		}
		return Result{Outcome: OutcomeNoNewPost}
	}

	if err := r.notifier.Deliver(ctx, post, highlighted); err != nil {
		log.Printf("[relay] deliver %s: %v", post.URL, err)
		return Result{Outcome: OutcomeError, Err: fmt.Errorf("deliver post %s: %w", post.ID, err)}
	}

	r.tracker.MarkDelivered(post.ID)
	log.Printf("[relay] delivered post %s (highlighted=%v)", post.ID, highlighted)
	return Result{Outcome: outcome, Post: post}
}

// matchesKeyword reports whether any configured keyword occurs as a
// substring of text.
func matchesKeyword(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
