package cherrypick

import (
	"sync"

	"github.com/MapoMagpie/comic-looms/pkg/bus"
	"github.com/MapoMagpie/comic-looms/pkg/fetchq"
)

// Store holds one CherryPick per chapter.
type Store struct {
	mu    sync.Mutex
	picks map[int]*CherryPick
}

func NewStore() *Store {
	return &Store{picks: make(map[int]*CherryPick)}
}

// Get returns the selection of chapter, creating an empty one.
func (s *Store) Get(chapter int) *CherryPick {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.picks[chapter]
	if !ok {
		c = New()
		s.picks[chapter] = c
	}
	return c
}

// Selection implements fetchq.SelectionResolver. Chapters never touched
// have no selection.
func (s *Store) Selection(chapter int) fetchq.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.picks[chapter]
	if !ok {
		return nil
	}
	return c
}

// Reset forgets the selection of chapter.
func (s *Store) Reset(chapter int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.picks, chapter)
}

// Subscribe applies CherryPickRange events published on b until the
// returned cancel is called.
func (s *Store) Subscribe(b *bus.Bus) (cancel func()) {
	return bus.Subscribe(b, func(e fetchq.CherryPickRange) {
		c := s.Get(e.Chapter)
		if e.Shift {
			c.Extend(e.Index, e.Positive)
			return
		}
		c.Add(Range{Start: e.Index, End: e.Index, Positive: e.Positive})
	})
}
