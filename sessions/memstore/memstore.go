// Package memstore keeps the session in process memory only. A restart starts
// logged out.
package memstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/zhancare-client/sessions"
)

var _ sessions.Storage = (*Store)(nil)

type Store struct {
	values map[string]string
	lock   sync.RWMutex
}

func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) MultiGet(_ context.Context, keys ...string) (map[string]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Store) MultiSet(_ context.Context, values map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *Store) MultiRemove(_ context.Context, keys ...string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}
