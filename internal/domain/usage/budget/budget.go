package budget

import "github.com/kailas-cloud/studybuddy/internal/domain/category"

// Budget is the daily answer allowance for one category.
type Budget struct {
	category  category.Category
	limit     int
	used      int
	remaining int
	resetsAt  int64 // unix millis, converted to RFC 3339 at transport layer
}

// New creates a Budget snapshot. remaining is clamped to [0, limit].
func New(c category.Category, limit, used, remaining int, resetsAt int64) Budget {
	if remaining < 0 {
		remaining = 0
	}
	if remaining > limit {
		remaining = limit
	}
	return Budget{
		category:  c,
		limit:     limit,
		used:      used,
		remaining: remaining,
		resetsAt:  resetsAt,
	}
}

// Category returns the answer type the allowance applies to.
func (b Budget) Category() category.Category { return b.category }

// Limit returns the daily cap.
func (b Budget) Limit() int { return b.limit }

// Used returns answers consumed (or reserved) today.
func (b Budget) Used() int { return b.used }

// Remaining returns answers left today.
func (b Budget) Remaining() int { return b.remaining }

// IsExhausted reports whether no answers are left.
func (b Budget) IsExhausted() bool { return b.remaining == 0 }

// ResetsAt returns the next reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }
