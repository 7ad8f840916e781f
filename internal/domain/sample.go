package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultRecentLimit is the row cap of a descending query that asks for no limit.
const DefaultRecentLimit = 20

var (
	ErrAuthFailure       = errors.New("authentication failed")
	ErrFetchFailure      = errors.New("fetch failed")
	ErrMalformedResponse = errors.New("malformed response payload")
	ErrInvalidSample     = errors.New("invalid sample")
)

// Sample is one immutable observation of a tracked resource.
type Sample struct {
	ID          int64     `json:"id,omitempty"`
	ResourceID  string    `json:"resource_id"`
	ObservedAt  time.Time `json:"observed_at"`
	ActiveCount int64     `json:"active_count"`
	TotalCount  *int64    `json:"total_count,omitempty"`
	ActiveRatio *float64  `json:"active_ratio,omitempty"`
}

// Validate reports ErrInvalidSample for rows the store must refuse.
func (s Sample) Validate() error {
	if s.ResourceID == "" {
		return fmt.Errorf("%w: empty resource id", ErrInvalidSample)
	}
	if s.ActiveCount < 0 {
		return fmt.Errorf("%w: negative active count %d", ErrInvalidSample, s.ActiveCount)
	}
	if s.TotalCount != nil && *s.TotalCount < 0 {
		return fmt.Errorf("%w: negative total count %d", ErrInvalidSample, *s.TotalCount)
	}
	return nil
}

// Prepare returns the row as it is written: stamped with now when the
// sample carries no time, and with the ratio derived from its own counts.
func (s Sample) Prepare(now time.Time) Sample {
	if s.ObservedAt.IsZero() {
		s.ObservedAt = now
	}
	s.ObservedAt = s.ObservedAt.UTC()
	s.ActiveRatio = nil
	if s.TotalCount != nil {
		ratio := Ratio(s.ActiveCount, *s.TotalCount)
		s.ActiveRatio = &ratio
	}
	return s
}

// Ratio is active/total, or 0 when total is not positive.
func Ratio(active, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(active) / float64(total)
}

type Order int

const (
	OrderAscending Order = iota
	OrderDescending
)

func (o Order) String() string {
	if o == OrderDescending {
		return "desc"
	}
	return "asc"
}

// ParseOrder accepts "asc" and "desc"; the empty string means ascending.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "asc":
		return OrderAscending, nil
	case "desc":
		return OrderDescending, nil
	}
	return OrderAscending, fmt.Errorf("unknown order %q", s)
}

// QueryOptions selects one of the two query modes. Start and End are
// inclusive bounds and are ignored when zero.
type QueryOptions struct {
	Order Order
	Limit int
	Start time.Time
	End   time.Time
}

// Chronological returns every sample oldest first.
func Chronological() QueryOptions {
	return QueryOptions{Order: OrderAscending}
}

// MostRecent returns at most limit samples newest first.
func MostRecent(limit int) QueryOptions {
	return QueryOptions{Order: OrderDescending, Limit: limit}
}

// EffectiveLimit is the row cap the store applies; zero means unlimited.
func (q QueryOptions) EffectiveLimit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	if q.Order == OrderDescending {
		return DefaultRecentLimit
	}
	return 0
}

// Contains reports whether t lies within the optional bounds.
func (q QueryOptions) Contains(t time.Time) bool {
	if !q.Start.IsZero() && t.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && t.After(q.End) {
		return false
	}
	return true
}

type SampleStore interface {
	Init() error
	Append(ctx context.Context, sample Sample) error
	Query(ctx context.Context, resourceID string, opts QueryOptions) ([]Sample, error)
	Count(ctx context.Context) (int64, error)
	DistinctResources(ctx context.Context) ([]string, error)
	Close() error
}

// Token is a bearer credential. The zero Token means unauthenticated access.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Sampler produces samples and never persists them. A non-nil error from
// Fetch means no sample was produced for that resource.
type Sampler interface {
	Authenticate(ctx context.Context) (Token, error)
	Fetch(ctx context.Context, token Token, resourceID string) (Sample, error)
}
