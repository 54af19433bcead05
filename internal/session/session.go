// Package session wires one reader session: the event bus, the fetch queue,
// the cherry-pick store, the bulk downloader and the HTTP client.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/MapoMagpie/comic-looms/pkg/bus"
	"github.com/MapoMagpie/comic-looms/pkg/cherrypick"
	"github.com/MapoMagpie/comic-looms/pkg/download"
	"github.com/MapoMagpie/comic-looms/pkg/fetchq"
	"github.com/MapoMagpie/comic-looms/pkg/fetcher"
	"github.com/MapoMagpie/comic-looms/pkg/gallery"
	"github.com/MapoMagpie/comic-looms/pkg/logger"
)

var ErrNoChapter = errors.New("no chapter loaded")

type Options struct {
	Queue    fetchq.Options
	Fetch    fetcher.Options
	Download download.Options
	// Selector picks the gallery images, gallery.DefaultSelector if empty.
	Selector string
	Logger   logger.Logger
}

type Session struct {
	bus        *bus.Bus
	queue      *fetchq.Queue
	picks      *cherrypick.Store
	downloader *download.Downloader
	client     *http.Client
	opts       Options
	l          logger.Logger

	mu      sync.Mutex
	chapter *gallery.Chapter
	units   []fetchq.Unit

	unsubPicks func()
}

// New builds a session. The session lives until Close or until ctx ends.
func New(ctx context.Context, opts *Options) (*Session, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.Logger = logger.OrNop(o.Logger)
	if o.Queue.Logger == nil {
		o.Queue.Logger = o.Logger
	}
	if o.Fetch.Logger == nil {
		o.Fetch.Logger = o.Logger
	}
	if o.Download.Logger == nil {
		o.Download.Logger = o.Logger
	}
	if o.Download.Threads <= 0 {
		o.Download.Threads = o.Queue.Threads
	}

	client, err := fetcher.NewHTTPClient(&o.Fetch)
	if err != nil {
		return nil, err
	}

	s := &Session{
		bus:        bus.New(),
		picks:      cherrypick.NewStore(),
		downloader: download.New(&o.Download),
		client:     client,
		opts:       o,
		l:          o.Logger,
	}
	s.unsubPicks = s.picks.Subscribe(s.bus)

	qopts := o.Queue
	qopts.Downloading = s.downloader
	qopts.Selection = s.picks
	s.queue = fetchq.NewQueue(ctx, s.bus, &qopts)
	return s, nil
}

// Open fetches and parses a gallery page, then loads it as chapter index.
func (s *Session) Open(ctx context.Context, pageURL string, index int) (*gallery.Chapter, error) {
	ch, err := gallery.Fetch(ctx, s.client, index, pageURL, s.opts.Selector)
	if err != nil {
		return nil, err
	}
	s.Load(ch)
	return ch, nil
}

// Load replaces the active chapter. Units of the previous chapter are
// unrendered before the queue is restored with the new ones.
func (s *Session) Load(ch *gallery.Chapter) {
	fopts := s.opts.Fetch
	if fopts.Referer == "" {
		fopts.Referer = ch.URL
	}
	units := fetcher.NewUnits(ch.Index, ch.Sources, s.client, s.bus, &fopts)

	s.mu.Lock()
	s.chapter = ch
	s.units = units
	s.mu.Unlock()

	bus.Publish(s.bus, fetchq.ChapterChanged{Chapter: ch.Index})
	s.queue.Restore(ch.Index, units)
	s.l.Info("loaded chapter %d %q with %d pages", ch.Index, ch.Title, len(units))
}

// Go moves the reader to index and schedules fetching toward dir.
func (s *Session) Go(index int, dir fetchq.Direction) {
	s.queue.Do(index, dir)
}

// CherryPick includes or excludes index of the active chapter. With shift
// the span from the previous pick is affected.
func (s *Session) CherryPick(index int, positive, shift bool) error {
	ch := s.Chapter()
	if ch == nil {
		return ErrNoChapter
	}
	bus.Publish(s.bus, fetchq.CherryPickRange{
		Chapter:  ch.Index,
		Index:    index,
		Positive: positive,
		Shift:    shift,
	})
	return nil
}

// Download saves the picked pages of the active chapter.
func (s *Session) Download(ctx context.Context) (*download.Result, error) {
	s.mu.Lock()
	ch, units := s.chapter, s.units
	s.mu.Unlock()
	if ch == nil {
		return nil, ErrNoChapter
	}
	return s.downloader.Start(ctx, units, s.picks.Selection(ch.Index))
}

func (s *Session) Chapter() *gallery.Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chapter
}

// Units returns the units of the active chapter.
func (s *Session) Units() []fetchq.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fetchq.Unit(nil), s.units...)
}

func (s *Session) Bus() *bus.Bus { return s.bus }
func (s *Session) Queue() *fetchq.Queue { return s.queue }
func (s *Session) Picks() *cherrypick.Store { return s.picks }
func (s *Session) Downloader() *download.Downloader { return s.downloader }
func (s *Session) Client() *http.Client { return s.client }

// Close releases the bus subscriptions and pending timers. In-flight fetches
// finish on their own.
func (s *Session) Close() {
	s.queue.Close()
	if s.unsubPicks != nil {
		s.unsubPicks()
	}
}
