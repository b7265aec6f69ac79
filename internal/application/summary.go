package application

import (
	"context"
	"strings"

	"vocalights/internal/domain"
)

// Dispatcher executes a phrase against the configured lights.
type Dispatcher interface {
	Dispatch(ctx context.Context, phrase string) []domain.Result
}

// Reporter receives the full result set of each phrase, e.g. for a console
// dump.
type Reporter interface {
	Report(phrase string, results []domain.Result)
}

// Summarize builds the spoken response for a result set. Identical summaries
// from several lights are reported once, in first-seen order.
func Summarize(results []domain.Result) string {
	seen := make(map[string]bool, len(results))
	parts := make([]string, 0, len(results))
	for _, r := range results {
		s := r.Summary()
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}
