// Package memory provides an in-memory ledger.Store for tests and local
// development. It honors the same ordering and compare-and-swap semantics
// as the PostgreSQL store.
package memory

import (
	"context"
	"sort"
	"sync"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/types"
	"kardex/internal/domain/ledger"
)

// Store holds every scope's entries sorted by (document_date, seq).
type Store struct {
	mu      sync.RWMutex
	entries map[ledger.Scope][]ledger.MovementEntry
	nextSeq map[ledger.Scope]int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		entries: make(map[ledger.Scope][]ledger.MovementEntry),
		nextSeq: make(map[ledger.Scope]int64),
	}
}

var _ ledger.Store = (*Store)(nil)

// Insert assigns the scope's next insertion sequence and files the entry at
// its ordering position. The slice stays sorted; a backdated entry lands
// before later-dated ones but after every same-date entry.
func (s *Store) Insert(_ context.Context, e *ledger.MovementEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq[e.Scope]++
	e.Seq = s.nextSeq[e.Scope]

	list := s.entries[e.Scope]
	pos := e.Position()
	i := sort.Search(len(list), func(i int) bool {
		return pos.Before(list[i].Position())
	})
	list = append(list, ledger.MovementEntry{})
	copy(list[i+1:], list[i:])
	list[i] = *e
	s.entries[e.Scope] = list
	return nil
}

func (s *Store) Last(_ context.Context, scope ledger.Scope) (*ledger.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.entries[scope]
	if len(list) == 0 {
		return nil, nil
	}
	e := list[len(list)-1]
	return &e, nil
}

func (s *Store) LastBefore(_ context.Context, scope ledger.Scope, pos ledger.Position) (*ledger.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.entries[scope]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Position().Before(pos) {
			e := list[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (s *Store) ListFrom(_ context.Context, scope ledger.Scope, pos *ledger.Position) ([]ledger.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.entries[scope]
	start := 0
	if pos != nil {
		start = sort.Search(len(list), func(i int) bool {
			return !list[i].Position().Before(*pos)
		})
	}
	result := make([]ledger.MovementEntry, len(list)-start)
	copy(result, list[start:])
	return result, nil
}

func (s *Store) LastKnownUnitCost(_ context.Context, scope ledger.Scope, pos *ledger.Position) (types.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.entries[scope]
	for i := len(list) - 1; i >= 0; i-- {
		e := &list[i]
		if pos != nil && !e.Position().Before(*pos) {
			continue
		}
		if e.BalanceQty.IsPositive() && !e.BalanceTotalCost.IsZero() {
			return e.BalanceTotalCost.Div(e.BalanceQty.Decimal()), nil
		}
	}
	return types.ZeroMoney(), nil
}

func (s *Store) CompareAndSwapBalance(_ context.Context, entryID id.ID, expectedVersion int64, stamp ledger.BalanceStamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for scope, list := range s.entries {
		for i := range list {
			if list[i].ID != entryID {
				continue
			}
			if list[i].Version != expectedVersion {
				return apperror.NewVersionConflict(entryID, expectedVersion)
			}
			list[i].UnitCost = stamp.UnitCost
			list[i].TotalCost = stamp.TotalCost
			list[i].BalanceQty = stamp.BalanceQty
			list[i].BalanceTotalCost = stamp.BalanceTotalCost
			list[i].Version++
			s.entries[scope] = list
			return nil
		}
	}
	return apperror.NewNotFound("movement entry", entryID)
}

func (s *Store) Scopes(_ context.Context, companyID id.ID) ([]ledger.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scopes []ledger.Scope
	for scope, list := range s.entries {
		if scope.CompanyID == companyID && len(list) > 0 {
			scopes = append(scopes, scope)
		}
	}
	sort.Slice(scopes, func(i, j int) bool {
		return scopes[i].String() < scopes[j].String()
	})
	return scopes, nil
}

func (s *Store) LatestPerScope(_ context.Context, companyID id.ID) ([]ledger.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest []ledger.MovementEntry
	for scope, list := range s.entries {
		if scope.CompanyID != companyID || len(list) == 0 {
			continue
		}
		latest = append(latest, list[len(list)-1])
	}
	sort.Slice(latest, func(i, j int) bool {
		return latest[i].Scope.String() < latest[j].Scope.String()
	})
	return latest, nil
}

func (s *Store) History(_ context.Context, filter ledger.HistoryFilter) ([]ledger.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ledger.MovementEntry
	for scope, list := range s.entries {
		if scope.CompanyID != filter.CompanyID {
			continue
		}
		if filter.ProductID != nil && scope.ProductID != *filter.ProductID {
			continue
		}
		if filter.WarehouseID != nil && scope.WarehouseID != *filter.WarehouseID {
			continue
		}
		for _, e := range list {
			if filter.Kind != nil && e.Kind != *filter.Kind {
				continue
			}
			if filter.FromDate != nil && e.DocumentDate.Before(*filter.FromDate) {
				continue
			}
			if filter.ToDate != nil && e.DocumentDate.After(*filter.ToDate) {
				continue
			}
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Scope != result[j].Scope {
			return result[i].Scope.String() < result[j].Scope.String()
		}
		return result[i].Position().Before(result[j].Position())
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}
