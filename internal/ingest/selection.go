package ingest

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/report-assistant/internal/model"
)

// SelectionStore holds each owner's currently selected report. Entries
// expire after the idle TTL and their bytes are released on eviction.
type SelectionStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewSelectionStore(ttl time.Duration) *SelectionStore {
	c := cache.New(ttl, ttl/2+time.Second)
	c.OnEvicted(func(_ string, v interface{}) {
		if doc, ok := v.(*model.ReportDocument); ok {
			doc.Release()
		}
	})
	return &SelectionStore{cache: c, ttl: ttl}
}

// Put replaces the owner's selection, releasing the previous document.
func (s *SelectionStore) Put(doc *model.ReportDocument) {
	key := doc.OwnerID.String()
	if prev, ok := s.cache.Get(key); ok {
		if prevDoc := prev.(*model.ReportDocument); prevDoc != doc {
			prevDoc.Release()
		}
	}
	s.cache.Set(key, doc, s.ttl)
}

// Get returns the selection and refreshes its idle TTL.
func (s *SelectionStore) Get(ownerID uuid.UUID) (*model.ReportDocument, bool) {
	v, ok := s.cache.Get(ownerID.String())
	if !ok {
		return nil, false
	}
	doc := v.(*model.ReportDocument)
	s.cache.Set(ownerID.String(), doc, s.ttl)
	return doc, true
}

func (s *SelectionStore) Clear(ownerID uuid.UUID) bool {
	key := ownerID.String()
	if _, ok := s.cache.Get(key); !ok {
		return false
	}
	s.cache.Delete(key)
	return true
}
