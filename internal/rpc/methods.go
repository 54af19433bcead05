package rpc

import (
	"context"
	"errors"

	"github.com/MapoMagpie/comic-looms/common"
	"github.com/MapoMagpie/comic-looms/internal/session"
	"github.com/MapoMagpie/comic-looms/pkg/fetchq"
	"github.com/creachadair/jrpc2"
)

// Custom JSON-RPC error codes.
const (
	codeNoChapter     = jrpc2.Code(-32001)
	codeInvalidParams = jrpc2.Code(-32602)
)

var errNoChapter = &jrpc2.Error{Code: codeNoChapter, Message: "no chapter loaded"}

func (s *Server) systemGetVersion(_ context.Context) (*common.VersionResponse, error) {
	return &common.VersionResponse{
		Version:   s.cfg.Version,
		Commit:    s.cfg.Commit,
		BuildType: s.cfg.BuildType,
	}, nil
}

// queueDo moves the focus. Out of range indices are clamped by the queue.
func (s *Server) queueDo(_ context.Context, p *common.DoParams) (*common.DoResponse, error) {
	dir, err := fetchq.ParseDirection(p.Direction)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	}
	if s.sess.Chapter() == nil {
		return nil, errNoChapter
	}
	s.sess.Go(p.Index, dir)
	return &common.DoResponse{Index: s.sess.Queue().CurrIndex()}, nil
}

func (s *Server) queueStatus(_ context.Context) (*common.StatusResponse, error) {
	ch := s.sess.Chapter()
	if ch == nil {
		return nil, errNoChapter
	}
	q := s.sess.Queue()
	pending := q.Executable()
	if pending == nil {
		pending = []int{}
	}
	return &common.StatusResponse{
		Chapter:     ch.Index,
		Title:       ch.Title,
		Pages:       q.Len(),
		CurrIndex:   q.CurrIndex(),
		Finished:    q.FinishedCount(),
		Complete:    q.IsFinished(),
		DataSize:    q.DataSize(),
		Downloading: s.sess.Downloader().Downloading(),
		Pending:     pending,
	}, nil
}

func (s *Server) queueCherryPick(_ context.Context, p *common.CherryPickParams) (*common.CherryPickResponse, error) {
	ch := s.sess.Chapter()
	if ch == nil {
		return nil, errNoChapter
	}
	if p.Index < 0 || p.Index >= ch.Len() {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "index out of range"}
	}
	if err := s.sess.CherryPick(p.Index, p.Positive, p.Shift); err != nil {
		if errors.Is(err, session.ErrNoChapter) {
			return nil, errNoChapter
		}
		return nil, err
	}
	return &common.CherryPickResponse{Ranges: s.sess.Picks().Get(ch.Index).String()}, nil
}
