// Package memstore keeps providers and assignments in process memory. Commits use
// per-provider versions, so it is safe for concurrent bookings within one process.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

type Store struct {
	mu          sync.RWMutex
	assignments []model.Assignment
	versions    map[string]int64
	providers   map[string]model.Provider
}

var (
	_ booking.VersionedStore = (*Store)(nil)
	_ booking.Directory      = (*Store)(nil)
)

func New() *Store {
	return &Store{
		versions:  map[string]int64{},
		providers: map[string]model.Provider{},
	}
}

func (s *Store) ListAssignments(_ context.Context, providerID string) ([]model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(providerID), nil
}

func (s *Store) AppendAssignment(_ context.Context, a model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(a)
	return nil
}

func (s *Store) Snapshot(_ context.Context, providerID string) ([]model.Assignment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(providerID), s.versions[providerID], nil
}

func (s *Store) AppendIfVersion(_ context.Context, a model.Assignment, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[a.ProviderRef()] != expected {
		return booking.ErrVersionConflict
	}
	s.appendLocked(a)
	return nil
}

func (s *Store) listLocked(providerID string) []model.Assignment {
	out := make([]model.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		if providerID == "" || a.ProviderRef() == providerID {
			out = append(out, cloneAssignment(a))
		}
	}
	return out
}

func (s *Store) appendLocked(a model.Assignment) {
	s.assignments = append(s.assignments, cloneAssignment(a))
	s.versions[a.ProviderRef()]++
}

// SaveProvider inserts or replaces a provider.
func (s *Store) SaveProvider(_ context.Context, p model.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = cloneProvider(p)
	return nil
}

func (s *Store) GetProvider(_ context.Context, id string) (model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return model.Provider{}, booking.ErrProviderNotFound
	}
	return cloneProvider(p), nil
}

func (s *Store) FindProviders(_ context.Context, q booking.ProviderQuery) ([]model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Provider
	for _, p := range s.providers {
		if !p.Offers(q.ServiceID) {
			continue
		}
		if q.Location != "" && !strings.EqualFold(p.Location, q.Location) {
			continue
		}
		out = append(out, cloneProvider(p))
	}
	slices.SortFunc(out, func(a, b model.Provider) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func cloneAssignment(a model.Assignment) model.Assignment {
	if a.Service != nil {
		svc := *a.Service
		a.Service = &svc
	}
	return a
}

func cloneProvider(p model.Provider) model.Provider {
	p.Services = slices.Clone(p.Services)
	p.WorkingDays = slices.Clone(p.WorkingDays)
	p.WorkShifts = slices.Clone(p.WorkShifts)
	p.OffDates = slices.Clone(p.OffDates)
	return p
}
