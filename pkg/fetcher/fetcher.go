// Package fetcher implements fetch units that download gallery images over
// HTTP.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MapoMagpie/comic-looms/pkg/bus"
	"github.com/MapoMagpie/comic-looms/pkg/fetchq"
	"github.com/MapoMagpie/comic-looms/pkg/logger"
)

const (
	DefaultTimeout = 30 * time.Second
	// MaxImageSize bounds a single response body (64MB).
	MaxImageSize int64 = 64 << 20
)

var (
	ErrNotImage   = errors.New("response is not an image")
	ErrBadStatus  = errors.New("unexpected response status")
	ErrTooLarge   = errors.New("image exceeds size limit")
	ErrEmptyImage = errors.New("empty response body")
)

// Options configures the HTTP client and the units built on it.
type Options struct {
	// Proxy is an http, https or socks5 URL.
	Proxy string
	// Timeout bounds one image fetch.
	Timeout      time.Duration
	UserAgent    string
	Referer      string
	MaxRedirects int
	Logger       logger.Logger
}

func (o *Options) setDefault() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = DefaultMaxRedirects
	}
	o.Logger = logger.OrNop(o.Logger)
}

// Node identifies the page slot an image is rendered into. Two nodes are
// equal when they point at the same source.
type Node struct {
	Src string
}

func (n *Node) Equal(other fetchq.Node) bool {
	o, ok := other.(*Node)
	return ok && n != nil && o != nil && o.Src == n.Src
}

// ImageFetcher fetches one image. It implements fetchq.Unit.
type ImageFetcher struct {
	chapter int
	index   int
	node    *Node
	client  *http.Client
	bus     *bus.Bus
	timeout time.Duration
	referer string
	l       logger.Logger

	mu          sync.Mutex
	stage       fetchq.Stage
	data        []byte
	contentType string
	cancel      context.CancelFunc
	// gen identifies the current attempt so that a superseded attempt
	// cannot overwrite state.
	gen uint64

	rendered atomic.Bool
}

// New builds a pending unit for src.
func New(chapter, index int, src string, client *http.Client, b *bus.Bus, opts *Options) *ImageFetcher {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.setDefault()
	if client == nil {
		client = http.DefaultClient
	}
	return &ImageFetcher{
		chapter: chapter,
		index:   index,
		node:    &Node{Src: src},
		client:  client,
		bus:     b,
		timeout: o.Timeout,
		referer: o.Referer,
		l:       o.Logger,
	}
}

// NewUnits builds one unit per source, indexed in order.
func NewUnits(chapter int, srcs []string, client *http.Client, b *bus.Bus, opts *Options) []fetchq.Unit {
	units := make([]fetchq.Unit, len(srcs))
	for i, src := range srcs {
		units[i] = New(chapter, i, src, client, b, opts)
	}
	return units
}

func (f *ImageFetcher) Stage() fetchq.Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stage
}

// SetStage forces the stage. Leaving DONE drops the fetched bytes.
func (f *ImageFetcher) SetStage(s fetchq.Stage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stage = s
	if s != fetchq.StageDone {
		f.data = nil
		f.contentType = ""
	}
}

// Start fetches the image and blocks until the attempt settles. The
// outcome is published as fetchq.FetchFinished. Start is a no-op unless the
// unit is pending.
func (f *ImageFetcher) Start(ctx context.Context) {
	f.mu.Lock()
	if f.stage != fetchq.StagePending {
		f.mu.Unlock()
		return
	}
	f.stage = fetchq.StageFetching
	f.gen++
	gen := f.gen
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	data, ct, err := f.fetch(ctx)

	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		return
	}
	f.cancel = nil
	if err == nil && f.stage == fetchq.StageFetching {
		f.data, f.contentType, f.stage = data, ct, fetchq.StageDone
	} else {
		if err == nil {
			err = context.Canceled
		}
		f.stage = fetchq.StagePending
	}
	f.mu.Unlock()

	if err != nil {
		f.l.Warning("image %d of chapter %d: %s", f.index+1, f.chapter, err)
	} else {
		f.l.Debug("image %d of chapter %d: %d bytes", f.index+1, f.chapter, len(data))
	}
	if f.bus != nil {
		bus.Publish(f.bus, fetchq.FetchFinished{Index: f.index, Success: err == nil, Unit: f})
	}
}

func (f *ImageFetcher) fetch(ctx context.Context) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.node.Src, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > MaxImageSize {
		return nil, "", ErrTooLarge
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	ct, ok := imageType(data, resp.Header.Get("Content-Type"))
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNotImage, ct)
	}
	return data, ct, nil
}

// imageType sniffs the body and falls back to the declared type for formats
// the sniffer does not know.
func imageType(data []byte, declared string) (string, bool) {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, true
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err == nil && strings.HasPrefix(mt, "image/") && sniffed == "application/octet-stream" {
		return mt, true
	}
	return sniffed, false
}

// Abort cancels the in-flight request, if any.
func (f *ImageFetcher) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
	}
}

func (f *ImageFetcher) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.data))
}

func (f *ImageFetcher) Chapter() int { return f.chapter }

func (f *ImageFetcher) Index() int { return f.index }

func (f *ImageFetcher) Node() fetchq.Node { return f.node }

func (f *ImageFetcher) Src() string { return f.node.Src }

// Data returns the fetched bytes, nil before DONE.
func (f *ImageFetcher) Data() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data
}

func (f *ImageFetcher) ContentType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contentType
}

// Ext returns the file extension for the fetched image.
func (f *ImageFetcher) Ext() string {
	return Extension(f.ContentType(), f.node.Src)
}

// MarkRendered records that the image is shown on a page.
func (f *ImageFetcher) MarkRendered() { f.rendered.Store(true) }

func (f *ImageFetcher) Rendered() bool { return f.rendered.Load() }

// Unrender drops the rendering state on chapter change.
func (f *ImageFetcher) Unrender() { f.rendered.Store(false) }

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/avif": ".avif",
	"image/heic": ".heic",
}

// Extension picks a file extension from a content type, then from the
// source path, defaulting to ".jpg".
func Extension(contentType, src string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if ext := strings.ToLower(path.Ext(src)); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".jpg"
}
