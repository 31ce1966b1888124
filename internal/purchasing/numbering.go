package purchasing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// numberPrefix returns the month prefix for order numbers, e.g. "PO-202608".
func numberPrefix(at time.Time) string {
	return fmt.Sprintf("PO-%s", at.Format("200601"))
}

// NumberSource is the query surface number allocation needs.
type NumberSource interface {
	// LatestNumberWithPrefix returns the lexicographically greatest order
	// number starting with prefix, or "" when none exists.
	LatestNumberWithPrefix(ctx context.Context, prefix string) (string, error)
}

// NumberGenerator allocates order numbers of the form PO-YYYYMM-NNNN where the
// counter is monotonic within a calendar month. Concurrent creations can race
// on the same counter; the unique index on purchase_orders.number rejects the
// loser, which surfaces as ErrDuplicateOrderNumber and may be retried.
type NumberGenerator struct {
	repo NumberSource
}

// NewNumberGenerator constructs a NumberGenerator.
func NewNumberGenerator(repo NumberSource) *NumberGenerator {
	return &NumberGenerator{repo: repo}
}

// Next produces the next order number for the month containing at.
func (g *NumberGenerator) Next(ctx context.Context, at time.Time) (string, error) {
	prefix := numberPrefix(at)
	latest, err := g.repo.LatestNumberWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	next := 1
	if latest != "" {
		raw := strings.TrimPrefix(latest, prefix+"-")
		if n, err := strconv.Atoi(raw); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s-%04d", prefix, next), nil
}
