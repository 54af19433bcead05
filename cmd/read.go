package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/MapoMagpie/comic-looms/cmd/common"
	"github.com/MapoMagpie/comic-looms/internal/session"
	"github.com/MapoMagpie/comic-looms/pkg/bus"
	"github.com/MapoMagpie/comic-looms/pkg/fetchq"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var (
	startPage int
	direction string

	readFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "start, s",
			Usage:       "page to start reading from (1-based)",
			Value:       1,
			Destination: &startPage,
		},
		cli.StringFlag{
			Name:        "direction, r",
			Usage:       "reading direction, next or prev",
			Value:       "next",
			Destination: &direction,
		},
	}
)

func read(ctx *cli.Context) error {
	url, ok, err := galleryURL(ctx)
	if !ok {
		return err
	}
	dir, err := fetchq.ParseDirection(direction)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}

	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	l, err := newLogger()
	if err != nil {
		return common.RuntimeErr(ctx, "read", "log_file", err)
	}
	defer l.Close()
	sess, err := session.New(sctx, sessionOptions(l))
	if err != nil {
		return common.RuntimeErr(ctx, "read", "new_session", err)
	}
	defer sess.Close()
	ch, err := sess.Open(sctx, url, 0)
	if err != nil {
		return common.RuntimeErr(ctx, "read", "open", err)
	}
	fmt.Printf(">> Reading %q (%d pages) <<\n", ch.Title, ch.Len())

	q := sess.Queue()
	start := q.FixIndex(startPage - 1)
	pages := ch.Len() - start
	if dir == fetchq.DirectionPrev {
		pages = start + 1
	}
	p := mpb.NewWithContext(sctx, mpb.WithWidth(64))
	bar := common.InitBar(p, "Reading", pages,
		decor.Any(func(decor.Statistics) string {
			return humanize.Bytes(uint64(q.DataSize()))
		}, decor.WC{W: 10}),
	)
	var failed int
	pageTimeout := timeout + debounce + 5*time.Second
	err = walk(sctx, sess, start, dir, pageTimeout, func(_ int, ok bool) {
		if !ok {
			failed++
		}
		bar.Increment()
	})
	if err != nil {
		bar.Abort(false)
	}
	p.Wait()
	if err != nil {
		return common.RuntimeErr(ctx, "read", "walk", err)
	}
	fmt.Printf("Read %d pages, %d fetched (%s), %d failed\n",
		bar.Current(), q.FinishedCount(), humanize.Bytes(uint64(q.DataSize())), failed)
	return nil
}

// walk moves the reader from start toward dir one page at a time. Each step
// schedules the lookahead with Do and waits until the focal page settles,
// then reports it through onPage. A page that does not settle within
// pageTimeout is reported as failed.
func walk(ctx context.Context, sess *session.Session, start int, dir fetchq.Direction, pageTimeout time.Duration, onPage func(index int, ok bool)) error {
	q := sess.Queue()
	if q.Len() == 0 {
		return nil
	}
	settled := make(chan fetchq.FetchFinished, q.Len())
	chapter := q.Chapter()
	unsub := bus.Subscribe(sess.Bus(), func(e fetchq.FetchFinished) {
		if e.Unit == nil || e.Unit.Chapter() != chapter {
			return
		}
		select {
		case settled <- e:
		default:
		}
	})
	defer unsub()

	step := 1
	if dir == fetchq.DirectionPrev {
		step = -1
	}
	for i := q.FixIndex(start); i >= 0 && i < q.Len(); i += step {
		u, _ := q.At(i)
		drain(settled)
		sess.Go(i, dir)
		ok, err := waitSettled(ctx, u, settled, pageTimeout)
		if err != nil {
			return err
		}
		if r, isFetcher := u.(interface{ MarkRendered() }); isFetcher && ok {
			r.MarkRendered()
		}
		onPage(i, ok)
	}
	return nil
}

func drain(c chan fetchq.FetchFinished) {
	for {
		select {
		case <-c:
		default:
			return
		}
	}
}

func waitSettled(ctx context.Context, u fetchq.Unit, settled <-chan fetchq.FetchFinished, d time.Duration) (bool, error) {
	if u.Stage() == fetchq.StageDone {
		return true, nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case e := <-settled:
			if e.Index != u.Index() {
				continue
			}
			if e.Success {
				return true, nil
			}
			if u.Stage() != fetchq.StageFetching {
				return false, nil
			}
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
