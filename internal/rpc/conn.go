package rpc

import (
	"context"
	"io"
	"time"

	cws "github.com/coder/websocket"
)

// writeTimeout bounds a single frame so one stalled client cannot hold up a
// push to the others.
const writeTimeout = 10 * time.Second

// wsConn carries jrpc2 messages as WebSocket text frames, one message per
// frame.
type wsConn struct {
	ws     *cws.Conn
	ctx    context.Context
	remote string
}

func newWSConn(ctx context.Context, ws *cws.Conn, remote string) *wsConn {
	ws.SetReadLimit(readLimit)
	return &wsConn{ws: ws, ctx: ctx, remote: remote}
}

func (c *wsConn) Send(msg []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return c.ws.Write(ctx, cws.MessageText, msg)
}

// Recv reports a client that closed the socket cleanly as io.EOF.
func (c *wsConn) Recv() ([]byte, error) {
	typ, msg, err := c.ws.Read(c.ctx)
	if err != nil {
		switch cws.CloseStatus(err) {
		case cws.StatusNormalClosure, cws.StatusGoingAway:
			return nil, io.EOF
		}
		return nil, err
	}
	if typ != cws.MessageText {
		c.ws.Close(cws.StatusUnsupportedData, "text frames only")
		return nil, io.ErrUnexpectedEOF
	}
	return msg, nil
}

func (c *wsConn) Close() error {
	return c.ws.Close(cws.StatusNormalClosure, "")
}
