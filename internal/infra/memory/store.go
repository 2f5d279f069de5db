// Package memory provides an in-memory PlanStore and ProfileFetcher used in
// local development and tests. Semantics mirror the PostgREST adapter,
// including the atomic month swap.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// Store keeps plans and profiles in maps guarded by one mutex.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*domain.PlanEntry          // key: user|date|category
	baselines map[string]map[string]decimal.Decimal // key: user|year|month -> category -> amount
	profiles  map[string]*domain.BudgetProfile
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:   make(map[string]*domain.PlanEntry),
		baselines: make(map[string]map[string]decimal.Decimal),
		profiles:  make(map[string]*domain.BudgetProfile),
	}
}

func monthKey(userID string, year, month int) string {
	return fmt.Sprintf("%s|%d|%02d", userID, year, month)
}

func monthPrefix(userID string, year, month int) string {
	return fmt.Sprintf("%s|%d-%02d-", userID, year, month)
}

// SeedProfile registers a budget profile for GetProfile lookups.
func (s *Store) SeedProfile(profile *domain.BudgetProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
}

// GetProfile implements port.ProfileFetcher.
func (s *Store) GetProfile(_ context.Context, userID string) (*domain.BudgetProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	cp := *p
	return &cp, nil
}

// ReplaceMonth swaps out everything stored for (user, year, month) under one
// lock hold, so readers never see a partial plan.
func (s *Store) ReplaceMonth(_ context.Context, doc *domain.PlanDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := monthPrefix(doc.UserID, doc.Year, doc.Month)
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}

	seen := make(map[string]bool, len(doc.Entries))
	for i := range doc.Entries {
		e := doc.Entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		key := e.Key()
		if seen[key] {
			return &domain.ErrDuplicateEntry{Key: key}
		}
		seen[key] = true
		s.entries[key] = &e
	}

	baselines := make(map[string]decimal.Decimal, len(doc.Baselines))
	for category, amount := range doc.Baselines {
		baselines[category] = amount
	}
	s.baselines[monthKey(doc.UserID, doc.Year, doc.Month)] = baselines
	return nil
}

// ListMonth implements port.PlanStore.
func (s *Store) ListMonth(_ context.Context, userID string, year, month int) ([]domain.PlanEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := monthPrefix(userID, year, month)
	entries := make([]domain.PlanEntry, 0)
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date < entries[j].Date
		}
		return entries[i].Category < entries[j].Category
	})
	return entries, nil
}

// GetBaselines implements port.PlanStore.
func (s *Store) GetBaselines(_ context.Context, userID string, year, month int) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	baselines, ok := s.baselines[monthKey(userID, year, month)]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "plan", ID: fmt.Sprintf("%s/%d-%02d", userID, year, month)}
	}
	out := make(map[string]decimal.Decimal, len(baselines))
	for category, amount := range baselines {
		out[category] = amount
	}
	return out, nil
}

// UpdateBaselines implements port.PlanStore.
func (s *Store) UpdateBaselines(_ context.Context, userID string, year, month int, baselines map[string]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.baselines[monthKey(userID, year, month)]
	if !ok {
		return &domain.ErrNotFound{Resource: "plan", ID: fmt.Sprintf("%s/%d-%02d", userID, year, month)}
	}
	for category, amount := range baselines {
		stored[category] = amount
	}
	return nil
}

// GetEntry implements port.PlanStore.
func (s *Store) GetEntry(_ context.Context, userID, date, category string) (*domain.PlanEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[userID+"|"+date+"|"+category]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "plan_entry", ID: userID + "|" + date + "|" + category}
	}
	cp := *e
	return &cp, nil
}

// UpsertEntry implements port.PlanStore.
func (s *Store) UpsertEntry(_ context.Context, entry *domain.PlanEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	if cp.ID == "" {
		if existing, ok := s.entries[cp.Key()]; ok {
			cp.ID = existing.ID
		} else {
			cp.ID = uuid.NewString()
		}
	}
	s.entries[cp.Key()] = &cp
	return nil
}

// UpdateEntries implements port.PlanStore.
func (s *Store) UpdateEntries(_ context.Context, entries []*domain.PlanEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		cp := *entry
		if cp.ID == "" {
			if existing, ok := s.entries[cp.Key()]; ok {
				cp.ID = existing.ID
			} else {
				cp.ID = uuid.NewString()
			}
		}
		s.entries[cp.Key()] = &cp
	}
	return nil
}

// Ping implements port.PlanStore.
func (s *Store) Ping(context.Context) error { return nil }
