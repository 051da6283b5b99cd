package audio

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/report-assistant/internal/model"
)

// Clip is a stored audio resource and its owner. A clip is never mutated once
// stored; readers may keep using it after it is released.
type Clip struct {
	ID        string
	OwnerID   uuid.UUID
	SessionID uuid.UUID
	Audio     *model.Audio
	CreatedAt time.Time
}

// Store holds synthesized audio until it expires or is released. Each owner
// has at most one live clip: storing a new one releases the previous.
type Store struct {
	cache *cache.Cache

	mu      sync.Mutex
	byOwner map[uuid.UUID]string
}

func NewStore(ttl time.Duration) *Store {
	s := &Store{
		cache:   cache.New(ttl, ttl/2+time.Second),
		byOwner: make(map[uuid.UUID]string),
	}
	s.cache.OnEvicted(s.onEvicted)
	return s
}

func (s *Store) onEvicted(id string, v interface{}) {
	clip, ok := v.(*Clip)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.byOwner[clip.OwnerID] == id {
		delete(s.byOwner, clip.OwnerID)
	}
	s.mu.Unlock()
}

// Put stores audio for the owner and returns the new clip. The owner's
// previous clip is released first.
func (s *Store) Put(ownerID, sessionID uuid.UUID, audio *model.Audio) *Clip {
	s.ReleaseOwner(ownerID)

	clip := &Clip{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		SessionID: sessionID,
		Audio:     audio,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.byOwner[ownerID] = clip.ID
	s.mu.Unlock()
	s.cache.SetDefault(clip.ID, clip)
	return clip
}

// Get returns the clip if it is live and belongs to the owner.
func (s *Store) Get(ownerID uuid.UUID, id string) (*Clip, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	clip := v.(*Clip)
	if clip.OwnerID != ownerID {
		return nil, false
	}
	return clip, true
}

// Release drops one clip. It reports whether the owner had it.
func (s *Store) Release(ownerID uuid.UUID, id string) bool {
	if _, ok := s.Get(ownerID, id); !ok {
		return false
	}
	s.cache.Delete(id)
	return true
}

// ReleaseOwner drops whatever clip the owner holds.
func (s *Store) ReleaseOwner(ownerID uuid.UUID) {
	s.mu.Lock()
	id, ok := s.byOwner[ownerID]
	s.mu.Unlock()
	if ok {
		s.cache.Delete(id)
	}
}

// Len is the number of live clips.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
