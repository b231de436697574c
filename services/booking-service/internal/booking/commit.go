package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is a step of the booking flow. Browsing and candidate selection happen on the
// caller's side; the engine owns validation and the terminal states.
type State int

const (
	StateBrowsing State = iota
	StateCandidateSelected
	StateValidating
	StateConfirmed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateBrowsing:
		return "BROWSING"
	case StateCandidateSelected:
		return "CANDIDATE_SELECTED"
	case StateValidating:
		return "VALIDATING"
	case StateConfirmed:
		return "CONFIRMED"
	case StateRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AssignmentFactory fills caller-owned fields of a new assignment (customer, notes,
// service). Provider, date, slot and duration are always set by the engine.
type AssignmentFactory func(p model.Provider, w model.Window) model.Assignment

type BookingResult struct {
	State      State
	Confirmed  bool
	Assignment model.Assignment
	Reason     model.Reason
}

func confirmed(a model.Assignment) BookingResult {
	return BookingResult{State: StateConfirmed, Confirmed: true, Assignment: a}
}

func rejected(reason model.Reason) BookingResult {
	return BookingResult{State: StateRejected, Reason: reason}
}

// AttemptBooking re-validates w for p against the provider's current assignments and
// appends a new assignment if it is still free. Rejections are returned as results;
// an error means the store or lock could not be used and nothing is known to be written.
func (e *Engine) AttemptBooking(ctx context.Context, p model.Provider, w model.Window, factory AssignmentFactory) (BookingResult, error) {
	if p.ID == "" {
		return BookingResult{}, ErrProviderIDMissing
	}
	w.Start = w.Start.Truncate(time.Minute)

	ctx, span := e.tracer.Start(ctx, "booking.attempt",
		trace.WithAttributes(
			attribute.String("provider.id", p.ID),
			attribute.String("window.start", w.Start.Format(time.RFC3339)),
			attribute.Int("window.duration_minutes", w.DurationMinutes),
		),
	)
	defer span.End()

	res, err := e.attempt(ctx, p, w, factory)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("booking commit failed",
			"provider_id", p.ID,
			"start", w.Start.Format(time.RFC3339),
			"err", err,
		)
		return BookingResult{State: StateValidating}, err
	}

	span.SetAttributes(
		attribute.String("booking.state", res.State.String()),
		attribute.String("booking.reason", string(res.Reason)),
	)
	if res.Confirmed {
		e.logger.Info("booking confirmed",
			"provider_id", p.ID,
			"assignment_id", res.Assignment.ID,
			"date", res.Assignment.Date,
			"time_slot", res.Assignment.TimeSlot,
			"duration_minutes", res.Assignment.DurationMinutes,
		)
	} else {
		e.logger.Info("booking rejected",
			"provider_id", p.ID,
			"start", w.Start.Format(time.RFC3339),
			"reason", string(res.Reason),
		)
	}
	return res, nil
}

func (e *Engine) attempt(ctx context.Context, p model.Provider, w model.Window, factory AssignmentFactory) (BookingResult, error) {
	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, lockKey(p.ID))
		if err != nil {
			return BookingResult{}, fmt.Errorf("booking: acquire commit lock: %w", err)
		}
		defer unlock()
	}

	switch s := e.store.(type) {
	case AtomicStore:
		return e.commitAtomic(ctx, s, p, w, factory)
	case VersionedStore:
		return e.commitVersioned(ctx, s, p, w, factory)
	default:
		if e.locker == nil {
			unlock, err := e.local.Lock(ctx, lockKey(p.ID))
			if err != nil {
				return BookingResult{}, fmt.Errorf("booking: acquire commit lock: %w", err)
			}
			defer unlock()
		}
		return e.commitSerial(ctx, e.store, p, w, factory)
	}
}

// commitSerial assumes the caller already holds the provider's critical section.
func (e *Engine) commitSerial(ctx context.Context, s Store, p model.Provider, w model.Window, factory AssignmentFactory) (BookingResult, error) {
	current, err := s.ListAssignments(ctx, p.ID)
	if err != nil {
		return BookingResult{}, fmt.Errorf("booking: list assignments: %w", err)
	}
	if av := CheckAvailability(p, w, current); !av.Available {
		return rejected(av.Reason), nil
	}

	a := e.newAssignment(p, w, factory)
	if err := s.AppendAssignment(ctx, a); err != nil {
		return BookingResult{}, fmt.Errorf("booking: append assignment: %w", err)
	}
	return confirmed(a), nil
}

func (e *Engine) commitAtomic(ctx context.Context, s AtomicStore, p model.Provider, w model.Window, factory AssignmentFactory) (BookingResult, error) {
	var res BookingResult
	err := s.WithProviderTx(ctx, p.ID, func(ctx context.Context, tx Store) error {
		var err error
		res, err = e.commitSerial(ctx, tx, p, w, factory)
		return err
	})
	if err != nil {
		return BookingResult{}, fmt.Errorf("booking: commit: %w", err)
	}
	return res, nil
}

func (e *Engine) commitVersioned(ctx context.Context, s VersionedStore, p model.Provider, w model.Window, factory AssignmentFactory) (BookingResult, error) {
	var (
		a     model.Assignment
		built bool
	)
	for attempt := 0; ; attempt++ {
		current, version, err := s.Snapshot(ctx, p.ID)
		if err != nil {
			return BookingResult{}, fmt.Errorf("booking: snapshot assignments: %w", err)
		}
		if av := CheckAvailability(p, w, current); !av.Available {
			return rejected(av.Reason), nil
		}

		if !built {
			a = e.newAssignment(p, w, factory)
			built = true
		}
		err = s.AppendIfVersion(ctx, a, version)
		if err == nil {
			return confirmed(a), nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return BookingResult{}, fmt.Errorf("booking: append assignment: %w", err)
		}
		if attempt >= e.maxRetries {
			return BookingResult{}, fmt.Errorf("booking: provider %s: %w", p.ID, ErrCommitContention)
		}
		e.logger.Debug("assignment set changed during commit; revalidating",
			"provider_id", p.ID,
			"attempt", attempt+1,
		)
	}
}

func (e *Engine) newAssignment(p model.Provider, w model.Window, factory AssignmentFactory) model.Assignment {
	var a model.Assignment
	if factory != nil {
		a = factory(p, w)
	}
	if a.ID == "" {
		a.ID = e.newID()
	}
	a.ProviderID = p.ID
	if a.Service != nil {
		svc := *a.Service
		svc.ProviderID = p.ID
		a.Service = &svc
	}
	a.Date = w.Start.Format(model.DateLayout)
	a.TimeSlot = model.ClockOf(w.Start).String()
	a.DurationMinutes = w.DurationMinutes
	if a.CreatedAt.IsZero() {
		a.CreatedAt = e.now()
	}
	return a
}
