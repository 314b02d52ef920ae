// Package source fetches the latest post of a watched account, either
// through the authenticated Twitter/X API or through an unauthenticated
// feed mirror used when the API is rate limited.
package source

import "regexp"

// Post is the canonical shape of a fetched post, regardless of which
// source produced it.
type Post struct {
	ID        string   // stable unique identifier, never empty
	Text      string   // post body, may be empty
	CreatedAt string   // source-reported creation time, "unknown" when absent
	URL       string   // canonical link to the post
	Media     []string // attachment URLs, ordered, deduplicated
}

// inlineImageRe matches image-like URLs embedded directly in post text.
var inlineImageRe = regexp.MustCompile(`(?i)https?://\S+\.(?:jpg|jpeg|png|gif)`)

// inlineImageURLs scans text for inline image URLs. Best effort: it is
// a plain pattern match, not a link parser.
func inlineImageURLs(text string) []string {
	return inlineImageRe.FindAllString(text, -1)
}

// orderedUnique removes duplicate URLs, keeping the first occurrence of
// each in its original position.
func orderedUnique(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	var out []string
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
