package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MapoMagpie/comic-looms/pkg/bus"
	"github.com/MapoMagpie/comic-looms/pkg/download"
	"github.com/MapoMagpie/comic-looms/pkg/fetchq"
	"github.com/MapoMagpie/comic-looms/pkg/fetcher"
	"github.com/spf13/afero"
)

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRpage")

func newGallery(t *testing.T, pages int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/g/1", func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		sb.WriteString("<html><head><title>Vol 1</title></head><body>")
		for i := 1; i <= pages; i++ {
			fmt.Fprintf(&sb, `<img class="page" src="/img/%d.png">`, i)
		}
		sb.WriteString("</body></html>")
		w.Write([]byte(sb.String()))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(png)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newSession(t *testing.T, fs afero.Fs) *Session {
	t.Helper()
	s, err := New(context.Background(), &Options{
		Queue:    fetchq.Options{Threads: 2, PaginationCount: 1, Debounce: 10 * time.Millisecond},
		Fetch:    fetcher.Options{Timeout: 5 * time.Second},
		Download: download.Options{Dir: "/out", Fs: fs},
		Selector: "img.page",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOpenAndRead(t *testing.T) {
	srv := newGallery(t, 6)
	s := newSession(t, afero.NewMemMapFs())

	ch, err := s.Open(context.Background(), srv.URL+"/g/1", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ch.Title != "Vol 1" || ch.Len() != 6 || s.Queue().Len() != 6 {
		t.Fatalf("unexpected chapter %+v, queue len %d", ch, s.Queue().Len())
	}

	s.Go(0, fetchq.DirectionNext)
	// focus plus Threads+PaginationCount-1 lookahead
	waitFor(t, "first window", func() bool { return s.Queue().FinishedCount() == 3 })
	if s.Queue().DataSize() != int64(3*len(png)) {
		t.Fatalf("data size = %d", s.Queue().DataSize())
	}

	s.Go(3, fetchq.DirectionNext)
	waitFor(t, "whole chapter", s.Queue().IsFinished)
}

func TestCherryPickAndDownload(t *testing.T) {
	srv := newGallery(t, 5)
	fs := afero.NewMemMapFs()
	s := newSession(t, fs)

	if err := s.CherryPick(0, true, false); !errors.Is(err, ErrNoChapter) {
		t.Fatalf("err = %v, want ErrNoChapter", err)
	}
	if _, err := s.Download(context.Background()); !errors.Is(err, ErrNoChapter) {
		t.Fatalf("err = %v, want ErrNoChapter", err)
	}

	if _, err := s.Open(context.Background(), srv.URL+"/g/1", 2); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.CherryPick(1, true, false); err != nil {
		t.Fatal(err)
	}
	if err := s.CherryPick(3, true, true); err != nil {
		t.Fatal(err)
	}
	if got := s.Picks().Get(2).String(); got != "2-4" {
		t.Fatalf("picks = %q, want 2-4", got)
	}

	res, err := s.Download(context.Background())
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	want := []string{"/out/002.png", "/out/003.png", "/out/004.png"}
	if strings.Join(res.Files, ",") != strings.Join(want, ",") {
		t.Fatalf("files = %v, want %v", res.Files, want)
	}
	if ok, _ := afero.Exists(fs, "/out/001.png"); ok {
		t.Fatal("expected unpicked page to be skipped")
	}
	if !s.Queue().IsFinished() {
		t.Fatal("expected the picked subset to count as finished")
	}
}

func TestGoWhileDownloading(t *testing.T) {
	srv := newGallery(t, 3)
	s := newSession(t, afero.NewMemMapFs())
	if _, err := s.Open(context.Background(), srv.URL+"/g/1", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var intents []fetchq.DoIntent
	bus.Subscribe(s.Bus(), func(e fetchq.DoIntent) { intents = append(intents, e) })
	bus.Subscribe(s.Bus(), func(e fetchq.FetchFinished) {
		if e.Index == 0 {
			s.Go(1, fetchq.DirectionNext)
		}
	})

	if _, err := s.Download(context.Background()); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(intents) != 1 {
		t.Fatalf("intents = %d, want 1", len(intents))
	}
	for _, in := range intents {
		if !in.Downloading {
			t.Fatalf("expected intents during a download to report it, got %+v", in)
		}
	}
}

func TestLoadReplacesChapter(t *testing.T) {
	srv := newGallery(t, 2)
	s := newSession(t, afero.NewMemMapFs())
	first, err := s.Open(context.Background(), srv.URL+"/g/1", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	old := s.Units()
	old[0].(*fetcher.ImageFetcher).MarkRendered()

	var changed []int
	bus.Subscribe(s.Bus(), func(e fetchq.ChapterChanged) { changed = append(changed, e.Chapter) })

	next := *first
	next.Index = 1
	s.Load(&next)

	if len(changed) != 1 || changed[0] != 1 {
		t.Fatalf("changed = %v", changed)
	}
	if old[0].(*fetcher.ImageFetcher).Rendered() {
		t.Fatal("expected previous chapter units to be unrendered")
	}
	if s.Queue().Chapter() != 1 || s.Chapter().Index != 1 {
		t.Fatal("expected the queue to follow the new chapter")
	}
}
