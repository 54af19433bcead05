package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MapoMagpie/comic-looms/cmd/common"
	envs "github.com/MapoMagpie/comic-looms/common"
	"github.com/MapoMagpie/comic-looms/internal/rpc"
	"github.com/MapoMagpie/comic-looms/internal/session"
	"github.com/urfave/cli"
)

var errNoSecret = errors.New("no rpc secret provided")

var (
	rpcPort   int
	rpcSecret string
	listenAll bool

	serveFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "port",
			Usage:       "port of the JSON-RPC endpoint",
			Value:       envs.DefaultRPCPort,
			Destination: &rpcPort,
		},
		cli.StringFlag{
			Name:        "secret",
			Usage:       "Bearer token clients must present",
			EnvVar:      envs.SecretEnv,
			Destination: &rpcSecret,
		},
		cli.BoolFlag{
			Name:        "listen-all",
			Usage:       "listen on all interfaces instead of localhost",
			Destination: &listenAll,
		},
	}
)

func serve(ctx *cli.Context) error {
	url, ok, err := galleryURL(ctx)
	if !ok {
		return err
	}
	if rpcSecret == "" {
		return common.PrintErrWithCmdHelp(ctx, errNoSecret)
	}

	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := newLogger()
	if err != nil {
		return common.RuntimeErr(ctx, "serve", "log_file", err)
	}
	defer l.Close()
	sess, err := session.New(sctx, sessionOptions(l))
	if err != nil {
		return common.RuntimeErr(ctx, "serve", "new_session", err)
	}
	defer sess.Close()
	ch, err := sess.Open(sctx, url, 0)
	if err != nil {
		return common.RuntimeErr(ctx, "serve", "open", err)
	}

	cfg := &rpc.Config{
		Secret:    rpcSecret,
		Port:      rpcPort,
		ListenAll: listenAll,
		Version:   currentBuildArgs.Version,
		Commit:    currentBuildArgs.Commit,
		BuildType: currentBuildArgs.BuildType,
	}
	srv := rpc.NewServer(cfg, sess, l)
	defer srv.Close()
	fmt.Printf(">> Serving %q (%d pages) on ws://%s%s <<\n", ch.Title, ch.Len(), cfg.Addr(), envs.DefaultRPCPattern)
	if err := srv.ListenAndServe(sctx); err != nil {
		return common.RuntimeErr(ctx, "serve", "listen", err)
	}
	return nil
}
