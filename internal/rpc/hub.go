package rpc

import (
	"context"
	"sync"

	"github.com/MapoMagpie/comic-looms/common"
	"github.com/MapoMagpie/comic-looms/pkg/bus"
	"github.com/MapoMagpie/comic-looms/pkg/fetchq"
	"github.com/MapoMagpie/comic-looms/pkg/logger"
	"github.com/creachadair/jrpc2"
)

// hub tracks connected clients by their jrpc2 server so queue events can be
// pushed to every reader at once.
type hub struct {
	mu      sync.Mutex
	clients map[*jrpc2.Server]string
	l       logger.Logger
}

func newHub(l logger.Logger) *hub {
	return &hub{clients: make(map[*jrpc2.Server]string), l: logger.OrNop(l)}
}

// join adds a client. The returned leave is safe to call after the hub has
// already dropped it.
func (h *hub) join(srv *jrpc2.Server, remote string) (leave func()) {
	h.mu.Lock()
	h.clients[srv] = remote
	n := len(h.clients)
	h.mu.Unlock()
	h.l.Debug("rpc %s joined, %d connected", remote, n)
	return func() {
		h.mu.Lock()
		delete(h.clients, srv)
		h.mu.Unlock()
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// push notifies every client and drops those the notification could not
// reach. It returns how many were dropped.
func (h *hub) push(method string, params any) int {
	h.mu.Lock()
	targets := make(map[*jrpc2.Server]string, len(h.clients))
	for srv, remote := range h.clients {
		targets[srv] = remote
	}
	h.mu.Unlock()

	dropped := 0
	for srv, remote := range targets {
		if err := srv.Notify(context.Background(), method, params); err != nil {
			h.l.Warning("rpc %s dropped on %s: %s", remote, method, err)
			h.mu.Lock()
			delete(h.clients, srv)
			h.mu.Unlock()
			dropped++
		}
	}
	return dropped
}

// follow pushes DoIntent and FinishedReported events of b until the returned
// func is called.
func (h *hub) follow(b *bus.Bus) (stop func()) {
	offDo := bus.Subscribe(b, func(e fetchq.DoIntent) {
		h.push(common.NotifyDo, &common.DoNotification{Index: e.Index, Downloading: e.Downloading})
	})
	offFinished := bus.Subscribe(b, func(e fetchq.FinishedReported) {
		h.push(common.NotifyFinished, finishedNotification(e))
	})
	return func() {
		offDo()
		offFinished()
	}
}

func finishedNotification(e fetchq.FinishedReported) *common.FinishedNotification {
	p := &common.FinishedNotification{Index: e.Index}
	if q := e.Queue; q != nil {
		p.Finished = q.FinishedCount()
		p.Pages = q.Len()
		p.DataSize = q.DataSize()
		p.Complete = q.IsFinished()
	}
	return p
}
