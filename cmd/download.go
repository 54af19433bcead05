package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"

	"github.com/MapoMagpie/comic-looms/cmd/common"
	"github.com/MapoMagpie/comic-looms/internal/session"
	"github.com/MapoMagpie/comic-looms/pkg/cherrypick"
	dl "github.com/MapoMagpie/comic-looms/pkg/download"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var (
	outDir string
	pick   string

	dlFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "out, o",
			Usage:       "directory the pages are saved into (default: the gallery title)",
			Destination: &outDir,
		},
		cli.StringFlag{
			Name:        "pick, p",
			Usage:       `pages to save, e.g. "1-10,!4,20-"`,
			Destination: &pick,
		},
	}
)

func download(ctx *cli.Context) error {
	url, ok, err := galleryURL(ctx)
	if !ok {
		return err
	}
	ranges, err := cherrypick.ParseRanges(pick)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}

	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		bar     atomic.Pointer[mpb.Bar]
		fetched atomic.Int64
	)
	l, err := newLogger()
	if err != nil {
		return common.RuntimeErr(ctx, "download", "log_file", err)
	}
	defer l.Close()
	opts := sessionOptions(l)
	opts.Download.OnProgress = func(pr dl.Progress) {
		fetched.Store(pr.Bytes)
		if b := bar.Load(); b != nil {
			b.Increment()
		}
	}
	sess, err := session.New(sctx, opts)
	if err != nil {
		return common.RuntimeErr(ctx, "download", "new_session", err)
	}
	defer sess.Close()
	ch, err := sess.Open(sctx, url, 0)
	if err != nil {
		return common.RuntimeErr(ctx, "download", "open", err)
	}

	cp := sess.Picks().Get(ch.Index)
	for _, r := range ranges {
		cp.Add(r)
	}
	dir := outDir
	if dir == "" {
		dir = sanitize(ch.Title)
	}
	// the directory is only known once the gallery is parsed
	sess.Downloader().SetDir(dir)

	pages := 0
	for i := range ch.Len() {
		if cp.Picked(i) {
			pages++
		}
	}
	if pages == 0 {
		fmt.Printf("Nothing picked out of %d pages\n", ch.Len())
		return nil
	}
	fmt.Printf(">> Downloading %d of %d pages of %q into %s <<\n", pages, ch.Len(), ch.Title, dir)

	p := mpb.NewWithContext(sctx, mpb.WithWidth(64))
	bar.Store(common.InitBar(p, "Downloading", pages,
		decor.Any(func(decor.Statistics) string {
			return humanize.Bytes(uint64(fetched.Load()))
		}, decor.WC{W: 10}),
	))
	res, err := sess.Download(sctx)
	if err != nil {
		bar.Load().Abort(false)
	}
	p.Wait()
	if err != nil {
		if res != nil && len(res.Failed) > 0 {
			failed := make([]int, len(res.Failed))
			for i, idx := range res.Failed {
				failed[i] = idx + 1
			}
			fmt.Printf("Failed pages: %v\n", failed)
		}
		return common.RuntimeErr(ctx, "download", "save", err)
	}
	fmt.Printf("Saved %d pages (%s) into %s\n", len(res.Files), humanize.Bytes(uint64(res.Bytes)), dir)
	return nil
}

// sanitize turns a gallery title into a directory name.
func sanitize(title string) string {
	out := []rune(title)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out[i] = '_'
		}
	}
	name := filepath.Clean(string(out))
	if name == "." || name == ".." || name == "" {
		return "gallery"
	}
	return name
}
