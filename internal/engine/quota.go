package engine

import "fmt"

// DefaultMaxContexts is the default limit on live recall contexts.
const DefaultMaxContexts = 256

// QuotaEnforcer bounds the number of live recall contexts.
//
// Every context holds a container, a recall id and runs duplicated for it,
// so an unbounded stream of note-ons would grow the tree without limit.
// A limit of zero or less disables enforcement.
type QuotaEnforcer struct {
	max  int
	live int
}

// NewQuotaEnforcer creates an enforcer with the given limit.
func NewQuotaEnforcer(limit int) *QuotaEnforcer {
	return &QuotaEnforcer{max: limit}
}

// Check reports whether n more contexts fit, without acquiring them.
func (q *QuotaEnforcer) Check(n int) error {
	if q.max > 0 && q.live+n > q.max {
		return &RuntimeError{
			Code:    ErrCodeQuotaExceeded,
			Message: fmt.Sprintf("live contexts would exceed limit (%d + %d > %d)", q.live, n, q.max),
		}
	}
	return nil
}

// Acquire accounts for one more live context.
func (q *QuotaEnforcer) Acquire() error {
	if err := q.Check(1); err != nil {
		return err
	}
	q.live++
	return nil
}

// Release accounts for one stopped context.
func (q *QuotaEnforcer) Release() {
	if q.live > 0 {
		q.live--
	}
}

// Live returns the number of live contexts.
func (q *QuotaEnforcer) Live() int {
	return q.live
}

// Max returns the limit.
func (q *QuotaEnforcer) Max() int {
	return q.max
}
