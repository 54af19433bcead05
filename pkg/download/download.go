// Package download saves every picked page of a chapter to disk.
//
// While a download runs, the Downloader reports itself as downloading so that
// the reader-driven fetch queue stands down.
package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MapoMagpie/comic-looms/pkg/fetchq"
	"github.com/MapoMagpie/comic-looms/pkg/logger"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// settlePoll is how often a unit fetched by someone else is checked.
var settlePoll = 20 * time.Millisecond

var (
	ErrAlreadyDownloading = errors.New("a download is already running")
	ErrIncomplete         = errors.New("download incomplete")
)

// Payload is implemented by units that expose their fetched image.
type Payload interface {
	Data() []byte
	Ext() string
}

// Progress is reported once per unit after its fetch attempt settles.
type Progress struct {
	Index   int
	OK      bool
	Settled int
	Total   int
	Bytes   int64
}

type Options struct {
	// Dir is created if missing.
	Dir     string
	Threads int
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// OnProgress is called from fetch goroutines.
	OnProgress func(Progress)
	Logger     logger.Logger
}

func (o *Options) setDefault() {
	if o.Threads <= 0 {
		o.Threads = fetchq.DefaultThreads
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.OnProgress == nil {
		o.OnProgress = func(Progress) {}
	}
	o.Logger = logger.OrNop(o.Logger)
}

// Result lists what a download produced.
type Result struct {
	Files  []string
	Failed []int
	Bytes  int64
}

// Downloader implements fetchq.DownloadingChecker.
type Downloader struct {
	opts        Options
	downloading atomic.Bool

	mu  sync.Mutex
	dir string
}

func New(opts *Options) *Downloader {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.setDefault()
	return &Downloader{opts: o, dir: o.Dir}
}

// SetDir changes the target directory of later downloads.
func (d *Downloader) SetDir(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dir = dir
}

func (d *Downloader) Dir() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dir
}

func (d *Downloader) Downloading() bool {
	return d.downloading.Load()
}

// Start fetches every picked unit that is not DONE, at most Threads at a
// time, waiting on units another fetcher already has in flight, then writes the DONE ones to Dir as zero-padded 1-based page
// numbers. A nil selection picks everything. Units that could not be
// fetched are listed in Result.Failed and make Start return ErrIncomplete.
func (d *Downloader) Start(ctx context.Context, units []fetchq.Unit, sel fetchq.Selection) (*Result, error) {
	if !d.downloading.CompareAndSwap(false, true) {
		return nil, ErrAlreadyDownloading
	}
	defer d.downloading.Store(false)
	dir := d.Dir()

	var picked []int
	for i := range units {
		if sel == nil || sel.Picked(i) {
			picked = append(picked, i)
		}
	}
	d.opts.Logger.Info("downloading %d of %d pages into %s", len(picked), len(units), dir)

	var settled atomic.Int32
	var fetched atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(d.opts.Threads)
	for _, i := range picked {
		u := units[i]
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			ok := settle(ctx, u)
			if ok {
				fetched.Add(u.Size())
			}
			d.opts.OnProgress(Progress{
				Index:   i,
				OK:      ok,
				Settled: int(settled.Add(1)),
				Total:   len(picked),
				Bytes:   fetched.Load(),
			})
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := d.opts.Fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	res := &Result{}
	width := max(3, len(strconv.Itoa(len(units))))
	for _, i := range picked {
		u := units[i]
		p, ok := u.(Payload)
		if !ok || u.Stage() != fetchq.StageDone {
			res.Failed = append(res.Failed, i)
			continue
		}
		data := p.Data()
		name := filepath.Join(dir, fmt.Sprintf("%0*d%s", width, i+1, p.Ext()))
		if err := afero.WriteFile(d.opts.Fs, name, data, 0o644); err != nil {
			return res, fmt.Errorf("write %s: %w", name, err)
		}
		res.Files = append(res.Files, name)
		res.Bytes += int64(len(data))
	}

	if len(res.Failed) > 0 {
		d.opts.Logger.Warning("%d pages could not be fetched", len(res.Failed))
		return res, fmt.Errorf("%w: %d of %d pages failed", ErrIncomplete, len(res.Failed), len(picked))
	}
	d.opts.Logger.Info("saved %d pages into %s", len(res.Files), dir)
	return res, nil
}

// settle brings u to DONE if it can. A unit that is already FETCHING, for
// example because the reader queue dispatched it, is waited for instead of
// being started again. A unit still PENDING after our own attempt failed.
func settle(ctx context.Context, u fetchq.Unit) bool {
	tried := false
	for ctx.Err() == nil {
		switch u.Stage() {
		case fetchq.StageDone:
			return true
		case fetchq.StagePending:
			if tried {
				return false
			}
			tried = true
			u.Start(ctx)
		default:
			t := time.NewTimer(settlePoll)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
			}
		}
	}
	return u.Stage() == fetchq.StageDone
}
