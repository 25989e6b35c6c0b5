package github

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
)

const (
	headerRateLimit     = "X-RateLimit-Limit"
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateUsed      = "X-RateLimit-Used"
	headerRateReset     = "X-RateLimit-Reset"
)

// rateLimitFromHeaders reads the budget headers. It returns nil when the
// remaining-budget header is missing or malformed; the other headers are
// optional.
func rateLimitFromHeaders(h http.Header) *model.RateLimit {
	if h == nil {
		return nil
	}
	remaining, ok := headerInt(h, headerRateRemaining)
	if !ok {
		return nil
	}

	rl := &model.RateLimit{Remaining: int(remaining)}
	if limit, ok := headerInt(h, headerRateLimit); ok {
		rl.Limit = int(limit)
	}
	if used, ok := headerInt(h, headerRateUsed); ok {
		rl.Used = int(used)
	}
	if reset, ok := headerInt(h, headerRateReset); ok && reset > 0 {
		rl.ResetAt = time.Unix(reset, 0).UTC()
	}
	return rl
}

// rateLimitFromBody converts the GraphQL rateLimit object.
func rateLimitFromBody(node *rateLimitNode) *model.RateLimit {
	if node == nil {
		return nil
	}
	rl := &model.RateLimit{
		Limit:     node.Limit,
		Remaining: node.Remaining,
		Cost:      node.Cost,
	}
	if node.ResetAt != nil {
		rl.ResetAt = node.ResetAt.UTC()
	}
	return rl
}

// mergeRateLimit prefers the header values and fills the gaps from the body.
func mergeRateLimit(fromHeaders, fromBody *model.RateLimit) *model.RateLimit {
	switch {
	case fromHeaders == nil:
		return fromBody
	case fromBody == nil:
		return fromHeaders
	}
	merged := *fromHeaders
	if merged.Cost == 0 {
		merged.Cost = fromBody.Cost
	}
	if merged.Limit == 0 {
		merged.Limit = fromBody.Limit
	}
	if !merged.HasReset() {
		merged.ResetAt = fromBody.ResetAt
	}
	return &merged
}

func headerInt(h http.Header, key string) (int64, bool) {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
