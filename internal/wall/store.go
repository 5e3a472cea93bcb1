package wall

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var (
	ErrNotFound     = errors.New("photo not found")
	ErrUnknownTheme = errors.New("unknown theme")
)

const (
	// StartX is where new photos are placed, next to the camera.
	StartX = 50.0
	// MaxTilt bounds the random rotation of a new photo, in degrees either way.
	MaxTilt = 5.0
)

// board is the state of one session's wall.
type board struct {
	mu     sync.Mutex
	photos []*Photo
	theme  string
}

func (b *board) find(id string) (*Photo, int) {
	for i, p := range b.photos {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// Store keeps walls in memory, one per session. A wall untouched for the
// idle TTL is dropped.
type Store struct {
	mu     sync.Mutex
	walls  *cache.Cache
	ttl    time.Duration
	random func() float64
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRandom replaces the source of photo tilt, for tests.
func WithRandom(f func() float64) StoreOption { return func(s *Store) { s.random = f } }

func WithClock(now func() time.Time) StoreOption { return func(s *Store) { s.now = now } }

// NewStore returns a Store whose walls expire after ttl of inactivity.
func NewStore(ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		walls:  cache.New(ttl, ttl/2+time.Minute),
		ttl:    ttl,
		random: rand.Float64,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// board returns the session's wall, creating it when create is set. Every
// access refreshes the idle TTL.
func (s *Store) board(session string, create bool) *board {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.walls.Get(session); ok {
		b := v.(*board)
		s.walls.Set(session, b, s.ttl)
		return b
	}
	if !create {
		return nil
	}
	b := &board{theme: DefaultTheme}
	s.walls.Set(session, b, s.ttl)
	return b
}

// Add pins a new photo to the session's wall at (StartX, startY) with a
// random tilt, and returns it.
func (s *Store) Add(session string, image []byte, mimeType string, startY float64) Photo {
	p := &Photo{
		ID:        uuid.NewString(),
		Image:     image,
		MimeType:  mimeType,
		CreatedAt: s.now(),
		X:         StartX,
		Y:         startY,
		Rotation:  (s.random() - 0.5) * 2 * MaxTilt,
	}
	b := s.board(session, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.photos = append(b.photos, p)
	return *p
}

// Get returns one photo.
func (s *Store) Get(session, id string) (Photo, error) {
	b := s.board(session, false)
	if b == nil {
		return Photo{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, _ := b.find(id)
	if p == nil {
		return Photo{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return *p, nil
}

// List returns the session's photos in the order they were added.
func (s *Store) List(session string) []Photo {
	b := s.board(session, false)
	if b == nil {
		return []Photo{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Photo, 0, len(b.photos))
	for _, p := range b.photos {
		out = append(out, *p)
	}
	return out
}

func (s *Store) update(session, id string, fn func(*Photo)) (Photo, error) {
	b := s.board(session, false)
	if b == nil {
		return Photo{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, _ := b.find(id)
	if p == nil {
		return Photo{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	fn(p)
	return *p, nil
}

// Move records where a photo was dropped.
func (s *Store) Move(session, id string, x, y float64) (Photo, error) {
	return s.update(session, id, func(p *Photo) {
		p.X, p.Y = x, y
	})
}

// SetCaption stores the caption once it resolves.
func (s *Store) SetCaption(session, id, caption string) (Photo, error) {
	return s.update(session, id, func(p *Photo) {
		p.Caption = caption
	})
}

// Delete removes a photo from the wall.
func (s *Store) Delete(session, id string) error {
	b := s.board(session, false)
	if b == nil {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, i := b.find(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	b.photos = append(b.photos[:i], b.photos[i+1:]...)
	return nil
}

// SetTheme selects the wall background.
func (s *Store) SetTheme(session, themeID string) (Theme, error) {
	t, ok := LookupTheme(themeID)
	if !ok {
		return Theme{}, fmt.Errorf("%q: %w", themeID, ErrUnknownTheme)
	}
	b := s.board(session, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.theme = t.ID
	return t, nil
}

// Theme returns the wall's current theme.
func (s *Store) Theme(session string) Theme {
	id := DefaultTheme
	if b := s.board(session, false); b != nil {
		b.mu.Lock()
		id = b.theme
		b.mu.Unlock()
	}
	t, _ := LookupTheme(id)
	return t
}
