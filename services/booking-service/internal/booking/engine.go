// Package booking decides whether providers can take a requested window and commits
// bookings only after re-validating against the latest stored assignments.
package booking

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxRetries = 5

// Availability is the verdict for one provider and window.
type Availability struct {
	Available bool
	Reason    model.Reason
}

// Candidate pairs a provider with its verdict at browse time.
type Candidate struct {
	Provider model.Provider
	Availability
}

// CheckAvailability evaluates schedule first, then conflicts. It is pure.
func CheckAvailability(p model.Provider, w model.Window, assignments []model.Assignment) Availability {
	if reason := availability.Evaluate(p, w); reason != model.ReasonNone {
		return Availability{Reason: reason}
	}
	if conflict.FindConflict(p, w, assignments) {
		return Availability{Reason: model.ReasonBookingConflict}
	}
	return Availability{Available: true}
}

type Engine struct {
	store      Store
	directory  Directory
	locker     Locker
	local      *LocalLocker
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string
	maxRetries int
}

type Option func(*Engine)

func WithDirectory(d Directory) Option { return func(e *Engine) { e.directory = d } }

// WithLocker adds a cross-process commit lock taken before the store's own guarantees.
func WithLocker(l Locker) Option { return func(e *Engine) { e.locker = l } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

// WithMaxRetries bounds compare-and-swap retries against a VersionedStore.
func WithMaxRetries(n int) Option { return func(e *Engine) { e.maxRetries = n } }

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		local:      NewLocalLocker(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("booking"),
		now:        time.Now,
		newID:      uuid.NewString,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxRetries < 0 {
		e.maxRetries = 0
	}
	return e
}

func (e *Engine) CheckAvailability(p model.Provider, w model.Window, assignments []model.Assignment) Availability {
	return CheckAvailability(p, w, assignments)
}

// Browse finds providers matching q and evaluates w for each against one snapshot.
func (e *Engine) Browse(ctx context.Context, q ProviderQuery, w model.Window) ([]Candidate, error) {
	if e.directory == nil {
		return nil, ErrNoDirectory
	}
	providers, err := e.directory.FindProviders(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("booking: find providers: %w", err)
	}
	return e.BrowseProviders(ctx, providers, w)
}

// BrowseProviders evaluates w for every provider. Available candidates sort first.
func (e *Engine) BrowseProviders(ctx context.Context, providers []model.Provider, w model.Window) ([]Candidate, error) {
	if len(providers) == 0 {
		return nil, nil
	}
	snapshot, err := e.store.ListAssignments(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("booking: list assignments: %w", err)
	}

	out := make([]Candidate, 0, len(providers))
	for _, p := range providers {
		out = append(out, Candidate{Provider: p, Availability: CheckAvailability(p, w, snapshot)})
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		if a.Available != b.Available {
			if a.Available {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Provider.ID, b.Provider.ID)
	})
	return out, nil
}

// OpenSlots lists bookable start times for p on the calendar day of day.
func (e *Engine) OpenSlots(ctx context.Context, p model.Provider, day time.Time, durationMinutes, stepMinutes int) ([]time.Time, error) {
	current, err := e.store.ListAssignments(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("booking: list assignments: %w", err)
	}

	busy := make([]availability.Interval, 0, len(current))
	for _, a := range current {
		if a.ProviderRef() != p.ID {
			continue
		}
		if start, end, ok := conflict.Span(a, day.Location()); ok {
			busy = append(busy, availability.Interval{Start: start, End: end})
		}
	}
	return availability.OpenSlots(p, day, durationMinutes, stepMinutes, busy, e.now().In(day.Location())), nil
}
