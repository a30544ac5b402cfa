// internal/chat/citations/resolver.go
package citations

import (
	"context"
	"strings"
	"time"

	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/common/metrics"
	"answer-gateway/internal/models"
)

// Lookup resolves one source id to its file name.
type Lookup interface {
	LookupFilename(ctx context.Context, sourceID string) (string, error)
}

// Resolver memoizes lookups for the lifetime of one query. It is not safe for
// concurrent use; create one per query.
type Resolver struct {
	lookup  Lookup
	timeout time.Duration
	logger  logger.Logger
	memo    map[string]string
}

func NewResolver(lookup Lookup, timeout time.Duration, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Resolver{
		lookup:  lookup,
		timeout: timeout,
		logger:  log,
		memo:    make(map[string]string),
	}
}

// Resolve returns the display name for sourceID. Any lookup failure yields
// the placeholder name, which is memoized like a real name.
func (r *Resolver) Resolve(ctx context.Context, sourceID string) string {
	if name, ok := r.memo[sourceID]; ok {
		metrics.CitationLookups.WithLabelValues("memo").Inc()
		return name
	}

	name := models.PlaceholderName(sourceID)
	if ctx.Err() != nil {
		metrics.CitationLookups.WithLabelValues("skipped").Inc()
		r.memo[sourceID] = name
		return name
	}
	if r.lookup != nil && sourceID != "" {
		lookupCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		resolved, err := r.lookup.LookupFilename(lookupCtx, sourceID)
		switch {
		case err != nil:
			metrics.CitationLookups.WithLabelValues("error").Inc()
			r.logger.Warn("citation lookup failed", map[string]interface{}{
				"sourceId": sourceID,
				"error":    err.Error(),
			})
		case strings.TrimSpace(resolved) == "":
			metrics.CitationLookups.WithLabelValues("empty").Inc()
		default:
			metrics.CitationLookups.WithLabelValues("resolved").Inc()
			name = resolved
		}
	}

	r.memo[sourceID] = name
	return name
}

// ResolveAll replaces placeholder names in place. The whole pass shares one
// timeout; citations left when it runs out keep their placeholder.
func (r *Resolver) ResolveAll(ctx context.Context, citations []models.Citation) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	for i := range citations {
		if citations[i].HasPlaceholderName() {
			citations[i].DisplayName = r.Resolve(ctx, citations[i].SourceID)
		}
	}
}
