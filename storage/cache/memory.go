// Package draftcache holds the admission drafts, in Redis or in memory.
package draftcache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
)

type memoryEntry struct {
	draft     admission.Draft
	expiresAt time.Time
}

type memoryStore struct {
	mutex   sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

var _ admission.DraftStore = (*memoryStore)(nil)

// NewMemoryStore keeps drafts in the process. Expired drafts are dropped lazily.
func NewMemoryStore(ttl time.Duration) admission.DraftStore {
	return &memoryStore{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) SaveDraft(_ context.Context, d admission.Draft) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.evict()
	s.entries[d.ID] = memoryEntry{draft: d, expiresAt: core.NowFunc().Add(s.ttl)}
	return nil
}

func (s *memoryStore) GetDraft(_ context.Context, id string) (admission.Draft, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.evict()
	if e, ok := s.entries[id]; ok {
		return e.draft, nil
	}
	return admission.Draft{}, errors.Wrapf(core.ErrNotFound, "draft %q", id)
}

func (s *memoryStore) DeleteDraft(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.entries, id)
	return nil
}

func (s *memoryStore) evict() {
	now := core.NowFunc()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// New returns the draft store selected by the configuration.
func New(conf *core.Config) (admission.DraftStore, error) {
	if conf.Drafts.Backend != "redis" {
		return NewMemoryStore(conf.Drafts.TTL), nil
	}
	client, err := NewRedisClient(conf)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(client, conf.Drafts.TTL), nil
}
