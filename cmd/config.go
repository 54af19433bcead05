package cmd

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MapoMagpie/comic-looms/cmd/common"
	envs "github.com/MapoMagpie/comic-looms/common"
	"github.com/MapoMagpie/comic-looms/internal/session"
	"github.com/MapoMagpie/comic-looms/pkg/fetchq"
	"github.com/MapoMagpie/comic-looms/pkg/fetcher"
	"github.com/MapoMagpie/comic-looms/pkg/gallery"
	"github.com/MapoMagpie/comic-looms/pkg/logger"
	"github.com/urfave/cli"
)

var errNoURL = errors.New("no gallery url provided")

var (
	pagination int
	threads    int
	debounce   time.Duration
	timeout    time.Duration
	proxyURL   string
	userAgent  string
	selector   string
	debug      bool
	logFile    string

	// logOutput receives log lines, progress bars go to stdout.
	logOutput io.Writer = os.Stderr

	globalFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "pagination",
			Usage:       "pages fetched together before the rest of the lookahead",
			Value:       fetchq.DefaultPaginationCount,
			EnvVar:      envs.PaginationEnv,
			Destination: &pagination,
		},
		cli.IntFlag{
			Name:        "threads, x",
			Usage:       "lookahead size and bulk download concurrency",
			Value:       fetchq.DefaultThreads,
			EnvVar:      envs.ThreadsEnv,
			Destination: &threads,
		},
		cli.DurationFlag{
			Name:        "debounce",
			Usage:       "quiet period before a burst of fetches starts",
			Value:       fetchq.DefaultDebounce,
			EnvVar:      envs.DebounceEnv,
			Destination: &debounce,
		},
		cli.DurationFlag{
			Name:        "timeout",
			Usage:       "timeout of a single image fetch",
			Value:       fetcher.DefaultTimeout,
			EnvVar:      envs.TimeoutEnv,
			Destination: &timeout,
		},
		cli.StringFlag{
			Name:        "proxy",
			Usage:       "http, https or socks5 proxy URL",
			EnvVar:      envs.ProxyEnv,
			Destination: &proxyURL,
		},
		cli.StringFlag{
			Name:        "user-agent",
			Usage:       "user agent or one of looms, firefox, chrome",
			EnvVar:      envs.UserAgentEnv,
			Destination: &userAgent,
		},
		cli.StringFlag{
			Name:        "selector",
			Usage:       "CSS selector of the gallery images",
			Value:       gallery.DefaultSelector,
			Destination: &selector,
		},
		cli.BoolFlag{
			Name:        "debug, d",
			Usage:       "enable debug logging",
			EnvVar:      envs.DebugEnv,
			Destination: &debug,
		},
		cli.StringFlag{
			Name:        "log-file",
			Usage:       "also append log lines to this file",
			EnvVar:      envs.LogFileEnv,
			Destination: &logFile,
		},
	}
)

// newLogger builds the command logger. The caller must Close it so the log
// file, if any, is flushed and released.
func newLogger() (logger.Logger, error) {
	console := logger.NewConsoleLogger(logOutput, debug)
	if logFile == "" {
		return console, nil
	}
	file, err := logger.OpenFileLogger(logFile, debug)
	if err != nil {
		return nil, err
	}
	return logger.Tee(console, file), nil
}

func sessionOptions(l logger.Logger) *session.Options {
	return &session.Options{
		Queue: fetchq.Options{
			PaginationCount: pagination,
			Threads:         threads,
			Debounce:        debounce,
		},
		Fetch: fetcher.Options{
			Proxy:     proxyURL,
			Timeout:   timeout,
			UserAgent: fetcher.ResolveUserAgent(userAgent),
		},
		Selector: selector,
		Logger:   l,
	}
}

// galleryURL returns the first argument, or handles the missing argument
// the way every command does.
func galleryURL(ctx *cli.Context) (string, bool, error) {
	url := strings.TrimSpace(ctx.Args().First())
	switch url {
	case "":
		return "", false, common.PrintErrWithCmdHelp(ctx, errNoURL)
	case "help":
		return "", false, cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	return url, true, nil
}
