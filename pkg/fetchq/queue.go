// Package fetchq schedules the image fetch units of one chapter.
//
// Given a focus index and a reading direction, a Queue picks a bounded
// window of not-yet-fetched units ahead of the reader and starts them in a
// burst-then-trickle pattern: the first PaginationCount units are started
// together and awaited, then the rest of the window is started without
// waiting. Rapid navigation is debounced so that only the latest window is
// executed. Completion reports arrive on the bus and feed the queue's
// finished set, which answers whether the chapter (or the user's
// cherry-picked subset of it) is complete.
package fetchq

import (
	"context"
	"sync"
	"time"

	"github.com/MapoMagpie/comic-looms/pkg/bus"
	"github.com/MapoMagpie/comic-looms/pkg/debounce"
	"github.com/MapoMagpie/comic-looms/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	// DataSizeCap is the soft ceiling of accumulated fetched bytes (1GB).
	// The addition that crosses it is still applied.
	DataSizeCap int64 = 1_000_000_000

	DefaultDebounce        = 300 * time.Millisecond
	DefaultPaginationCount = 1
	DefaultThreads         = 3

	executableKey = "fetchq-executable"
)

// Options configures a Queue. The zero value is usable.
type Options struct {
	// PaginationCount is the burst size: how many units are started
	// together and awaited before the rest of the window is released.
	PaginationCount int
	// Threads is the parallel fetch budget. Together with PaginationCount
	// it bounds the lookahead window to Threads+PaginationCount-1 units
	// besides the focused one.
	Threads int
	// Debounce is the coalescing delay of scheduling calls.
	Debounce time.Duration
	// Downloading reports whether a bulk download owns fetching.
	Downloading DownloadingChecker
	// Selection resolves the cherry-picked subset of a chapter.
	Selection SelectionResolver
	Logger    logger.Logger
}

func (o *Options) setDefault() {
	if o.PaginationCount <= 0 {
		o.PaginationCount = DefaultPaginationCount
	}
	if o.Threads <= 0 {
		o.Threads = DefaultThreads
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Downloading == nil {
		o.Downloading = neverDownloading{}
	}
	if o.Selection == nil {
		o.Selection = noSelection{}
	}
	o.Logger = logger.OrNop(o.Logger)
}

// Queue is the ordered set of fetch units of the active chapter.
type Queue struct {
	mu         sync.Mutex
	units      []Unit
	executable []int
	currIndex  int
	finished   map[int]struct{}
	chapter    int
	dataSize   int64
	// epoch changes on every Clear so a burst can tell that the units it
	// was computed from have been replaced.
	epoch uint64

	opts      Options
	bus       *bus.Bus
	debouncer *debounce.Debouncer
	l         logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	// fetchCtx is handed to started units; it carries the values of ctx
	// but is never cancelled by the queue.
	fetchCtx  context.Context
	unsubs    []func()
}

// NewQueue creates a Queue and subscribes it to b. Subscriptions live until
// Close is called or ctx is cancelled.
func NewQueue(ctx context.Context, b *bus.Bus, opts *Options) *Queue {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.setDefault()
	fetchCtx := context.WithoutCancel(ctx)
	ctx, cancel := context.WithCancel(ctx)
	q := &Queue{
		finished:  make(map[int]struct{}),
		opts:      o,
		bus:       b,
		debouncer: debounce.New(),
		l:         o.Logger,
		ctx:       ctx,
		cancel:    cancel,
		fetchCtx:  fetchCtx,
	}
	q.unsubs = []func(){
		bus.Subscribe(b, func(e FetchFinished) {
			if e.Unit == nil || e.Unit.Chapter() != q.Chapter() {
				return
			}
			q.FinishedReport(e.Index, e.Success, e.Unit)
		}),
		bus.Subscribe(b, func(e ScheduleRequest) {
			if e.Unit == nil || e.Unit.Chapter() != q.Chapter() {
				return
			}
			q.Do(e.Index, e.Direction)
		}),
		bus.Subscribe(b, func(e ChapterChanged) {
			for _, u := range q.snapshot() {
				if r, ok := u.(Unrenderer); ok {
					r.Unrender()
				}
			}
		}),
		bus.Subscribe(b, func(e CherryPickRange) {
			if e.Chapter != q.Chapter() || e.Positive {
				return
			}
			u, ok := q.At(e.Index)
			if ok && u.Stage() == StageFetching {
				q.l.Debug("aborting excluded unit %d", e.Index)
				u.Abort()
				u.SetStage(StagePending)
			}
		}),
	}
	go func() {
		<-ctx.Done()
		q.debouncer.Stop()
	}()
	return q
}

// Close releases the bus subscriptions and drops any pending burst and
// trickle. Units already started keep fetching; only Unit.Abort stops them.
func (q *Queue) Close() {
	q.mu.Lock()
	unsubs := q.unsubs
	q.unsubs = nil
	q.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
	q.debouncer.Stop()
	q.cancel()
}

// Clear empties all scheduling state. Subscriptions are kept.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clear()
}

func (q *Queue) clear() {
	q.units = nil
	q.executable = nil
	q.currIndex = 0
	q.finished = make(map[int]struct{})
	q.epoch++
}

// Restore replaces the queue content with units of chapter. Units that are
// already DONE are counted as finished.
func (q *Queue) Restore(chapter int, units []Unit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clear()
	q.chapter = chapter
	q.units = make([]Unit, len(units))
	copy(q.units, units)
	for i, u := range q.units {
		if u.Stage() == StageDone {
			q.finished[i] = struct{}{}
		}
	}
	q.l.Debug("chapter %d restored: %d units, %d already done", chapter, len(units), len(q.finished))
}

// Do moves the focus to start and schedules the fetch window toward dir.
func (q *Queue) Do(start int, dir Direction) {
	q.mu.Lock()
	q.currIndex = q.fixIndex(start)
	curr := q.currIndex
	q.mu.Unlock()

	downloading := q.opts.Downloading.Downloading()
	bus.Publish(q.bus, DoIntent{Index: curr, Queue: q, Downloading: downloading})
	if downloading {
		return
	}

	// subscribers of DoIntent may have restored another chapter
	q.mu.Lock()
	q.currIndex = q.fixIndex(start)
	curr = q.currIndex
	pushed := q.pushInExecutableQueue(dir)
	if len(q.units) > 0 && fetchable(q.units[curr]) {
		q.executable = append([]int{curr}, q.executable...)
		pushed = true
	}
	window := append([]int(nil), q.executable...)
	q.mu.Unlock()
	if !pushed {
		return
	}

	q.l.Debug("focus %d %s, window %v", curr, dir, window)
	q.debouncer.AddEvent(executableKey, q.execute, q.opts.Debounce)
}

// PushInExecutableQueue recomputes the lookahead window. It steps from the
// focused index toward dir, skipping units that are DONE or already in
// flight, until the edge of the chapter or until Threads+PaginationCount-1
// indices are collected. The focused unit itself is not part of the window.
// It reports whether anything was collected.
func (q *Queue) PushInExecutableQueue(dir Direction) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushInExecutableQueue(dir)
}

func (q *Queue) pushInExecutableQueue(dir Direction) bool {
	limit := q.opts.Threads + q.opts.PaginationCount - 1
	step := 1
	if dir == DirectionPrev {
		step = -1
	}
	q.executable = nil
	for i := q.currIndex + step; i >= 0 && i < len(q.units) && len(q.executable) < limit; i += step {
		if !fetchable(q.units[i]) {
			continue
		}
		q.executable = append(q.executable, i)
	}
	return len(q.executable) > 0
}

func fetchable(u Unit) bool {
	switch u.Stage() {
	case StageDone, StageFetching:
		return false
	}
	return true
}

// execute runs the debounced window: a burst of PaginationCount units is
// started and awaited, then every remaining picked unit is started on its
// own goroutine.
func (q *Queue) execute() {
	q.mu.Lock()
	window := q.executable
	q.executable = nil
	units := q.units
	chapter := q.chapter
	epoch := q.epoch
	q.mu.Unlock()
	if len(window) == 0 {
		return
	}

	n := min(q.opts.PaginationCount, len(window))
	burst, rest := window[:n], window[n:]
	q.l.Debug("burst %v, trickle %v", burst, rest)

	var g errgroup.Group
	for _, i := range burst {
		u := units[i]
		g.Go(func() error {
			u.Start(q.fetchCtx)
			return nil
		})
	}
	_ = g.Wait()

	if q.ctx.Err() != nil {
		return
	}
	q.mu.Lock()
	replaced := q.epoch != epoch
	q.mu.Unlock()
	if replaced {
		q.l.Debug("chapter %d replaced during burst, dropping trickle %v", chapter, rest)
		return
	}

	sel := q.opts.Selection.Selection(chapter)
	for _, i := range rest {
		if sel != nil && !sel.Picked(i) {
			continue
		}
		u := units[i]
		go u.Start(q.fetchCtx)
	}
}

// FinishedReport records the completion of the unit at index. Reports that
// arrive after the queue was cleared, failed reports and reports for units
// that are not DONE are ignored.
func (q *Queue) FinishedReport(index int, success bool, u Unit) {
	q.mu.Lock()
	if len(q.units) == 0 {
		q.mu.Unlock()
		return
	}
	if !success || u == nil || u.Stage() != StageDone || index < 0 || index >= len(q.units) {
		q.mu.Unlock()
		return
	}
	q.finished[index] = struct{}{}
	if q.dataSize < DataSizeCap {
		q.dataSize += u.Size()
	}
	q.mu.Unlock()

	bus.Publish(q.bus, FinishedReported{Index: index, Queue: q})
}

// IsFinished reports whether every index of the chapter has finished. When
// the chapter has an active selection with picks, only picked indices count.
func (q *Queue) IsFinished() bool {
	sel := q.opts.Selection.Selection(q.Chapter())

	q.mu.Lock()
	defer q.mu.Unlock()
	if sel != nil && sel.HasPicks() {
		for i := range q.units {
			if !sel.Picked(i) {
				continue
			}
			if _, ok := q.finished[i]; !ok {
				return false
			}
		}
		return true
	}
	return len(q.finished) == len(q.units)
}

// FixIndex clamps start into [0, Len()-1]. An empty queue has no valid
// index; FixIndex returns 0 for it and callers must check Len.
func (q *Queue) FixIndex(start int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fixIndex(start)
}

func (q *Queue) fixIndex(start int) int {
	if start > len(q.units)-1 {
		start = len(q.units) - 1
	}
	if start < 0 {
		start = 0
	}
	return start
}

// FindImgIndex returns the index of the unit rendered into node.
// found is false, with index 0, when no unit matches.
func (q *Queue) FindImgIndex(node Node) (index int, found bool) {
	for i, u := range q.snapshot() {
		if n := u.Node(); n != nil && n.Equal(node) {
			return i, true
		}
	}
	return 0, false
}

// Len returns the number of units.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units)
}

// At returns the unit at index i.
func (q *Queue) At(i int) (Unit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i >= len(q.units) {
		return nil, false
	}
	return q.units[i], true
}

func (q *Queue) CurrIndex() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currIndex
}

func (q *Queue) Chapter() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.chapter
}

// DataSize returns the accumulated fetched bytes.
func (q *Queue) DataSize() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dataSize
}

func (q *Queue) FinishedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.finished)
}

// IsIndexFinished reports whether index has a recorded completion.
func (q *Queue) IsIndexFinished(index int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.finished[index]
	return ok
}

// Executable returns a copy of the window waiting for execution.
func (q *Queue) Executable() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int(nil), q.executable...)
}

func (q *Queue) snapshot() []Unit {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Unit(nil), q.units...)
}
