package bindings

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/credentials"
	"github.com/dmitrijs2005/ucenter-gateway/internal/models"
	"github.com/dmitrijs2005/ucenter-gateway/internal/timex"
)

type bindingKey struct {
	uid int64
	typ credentials.Type
}

// MemoryStore is an in-process Store with the same semantics as
// PostgresStore. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	rows  map[bindingKey]*models.Binding
	clock timex.Clock
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[bindingKey]*models.Binding)}
}

func (s *MemoryStore) Add(_ context.Context, uid int64, t credentials.Type, identifier string) error {
	if err := validate(uid, t); err != nil {
		return err
	}
	if err := validateIdentifier(t, identifier); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for key, row := range s.rows {
		if key.typ == t && key.uid != uid && row.Identifier == identifier && row.Live() {
			s.softDelete(row, now)
		}
	}

	key := bindingKey{uid: uid, typ: t}
	if row, ok := s.rows[key]; ok {
		row.Identifier = identifier
		row.DeletedAt = nil
		row.UpdatedAt = now
		return nil
	}
	s.rows[key] = &models.Binding{
		UID:        uid,
		Type:       string(t),
		Identifier: identifier,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, uid int64, t credentials.Type) error {
	if err := validate(uid, t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[bindingKey{uid: uid, typ: t}]; ok && row.Live() {
		s.softDelete(row, s.clock.Now())
	}
	return nil
}

func (s *MemoryStore) GetByUID(_ context.Context, uid int64) (map[credentials.Type]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := emptyMapping()
	for _, t := range credentials.Types {
		if row, ok := s.rows[bindingKey{uid: uid, typ: t}]; ok && row.Live() {
			out[t] = row.Identifier
		}
	}
	return out, nil
}

func (s *MemoryStore) FindUID(_ context.Context, t credentials.Type, identifier string) (int64, error) {
	if err := validateIdentifier(t, identifier); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, row := range s.rows {
		if key.typ == t && row.Identifier == identifier && row.Live() {
			return key.uid, nil
		}
	}
	return 0, common.ErrorNotFound
}

// History returns the row for (uid, t) whether it is live or removed.
func (s *MemoryStore) History(uid int64, t credentials.Type) (models.Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[bindingKey{uid: uid, typ: t}]
	if !ok {
		return models.Binding{}, false
	}
	return *row, true
}

func (s *MemoryStore) softDelete(row *models.Binding, now time.Time) {
	at := now
	row.DeletedAt = &at
	row.UpdatedAt = now
}
