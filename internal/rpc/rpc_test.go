package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MapoMagpie/comic-looms/common"
	"github.com/MapoMagpie/comic-looms/internal/session"
	"github.com/MapoMagpie/comic-looms/pkg/fetchq"
	"github.com/MapoMagpie/comic-looms/pkg/gallery"
	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
)

const testSecret = "ws-test-secret"

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRpage")

type frame struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type fixture struct {
	sess  *session.Session
	srv   *Server
	wsURL string
	load  func()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(png)
	}))
	t.Cleanup(images.Close)

	sess, err := session.New(context.Background(), &session.Options{
		Queue: fetchq.Options{Threads: 2, PaginationCount: 1, Debounce: 10 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(sess.Close)

	srv := NewServer(&Config{Secret: testSecret, Version: "1.0.0", Commit: "abc123"}, sess, nil)
	t.Cleanup(srv.Close)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	sources := make([]string, 4)
	for i := range sources {
		sources[i] = fmt.Sprintf("%s/%d.png", images.URL, i+1)
	}
	return &fixture{
		sess:  sess,
		srv:   srv,
		wsURL: "ws" + strings.TrimPrefix(hs.URL, "http") + common.DefaultRPCPattern,
		load: func() {
			sess.Load(&gallery.Chapter{Index: 0, Title: "Vol 1", URL: images.URL, Sources: sources})
		},
	}
}

func dial(t *testing.T, ctx context.Context, wsURL string) *cws.Conn {
	t.Helper()
	conn, _, err := cws.Dial(ctx, wsURL, &cws.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + testSecret},
		},
	})
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close(cws.StatusNormalClosure, "") })
	return conn
}

// call sends a request and reads frames until its response arrives. Push
// notifications read on the way are returned too.
func call(t *testing.T, ctx context.Context, conn *cws.Conn, id int, method string, params any) (*frame, []*frame) {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "method": method, "id": id}
	if params != nil {
		req["params"] = params
	}
	data, _ := json.Marshal(req)
	if err := conn.Write(ctx, cws.MessageText, data); err != nil {
		t.Fatalf("WebSocket write failed: %v", err)
	}
	var pushed []*frame
	for {
		f := readFrame(t, ctx, conn)
		if f.Method != "" {
			pushed = append(pushed, f)
			continue
		}
		if n, ok := f.ID.(float64); ok && int(n) == id {
			return f, pushed
		}
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *cws.Conn) *frame {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("WebSocket read failed: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return &f
}

func TestAuthRequired(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, header := range []http.Header{
		nil,
		{"Authorization": []string{"Bearer wrong-token"}},
		{"Authorization": []string{testSecret}},
	} {
		_, resp, err := cws.Dial(ctx, fx.wsURL, &cws.DialOptions{HTTPHeader: header})
		if err == nil {
			t.Fatalf("expected rejection for header %v", header)
		}
		if resp != nil && resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	}
}

func TestValidToken(t *testing.T) {
	tests := []struct {
		secret, header string
		want           bool
	}{
		{"s", "Bearer s", true},
		{"s", "Bearer t", false},
		{"s", "s", false},
		{"", "Bearer ", false},
	}
	for _, tt := range tests {
		if got := validToken(tt.secret, tt.header); got != tt.want {
			t.Errorf("validToken(%q, %q) = %v, want %v", tt.secret, tt.header, got, tt.want)
		}
	}
}

func TestGetVersion(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, fx.wsURL)

	resp, _ := call(t, ctx, conn, 1, common.MethodGetVersion, nil)
	var v common.VersionResponse
	if err := json.Unmarshal(resp.Result, &v); err != nil {
		t.Fatalf("result: %v (error: %+v)", err, resp.Error)
	}
	if v.Version != "1.0.0" || v.Commit != "abc123" {
		t.Fatalf("unexpected version %+v", v)
	}
}

func TestNoChapter(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, fx.wsURL)

	for i, method := range []string{common.MethodStatus, common.MethodDo, common.MethodCherryPick} {
		var params any
		if method != common.MethodStatus {
			params = map[string]any{"index": 0}
		}
		resp, _ := call(t, ctx, conn, i+1, method, params)
		if resp.Error == nil || resp.Error.Code != int(codeNoChapter) {
			t.Fatalf("%s: expected no-chapter error, got %+v", method, resp.Error)
		}
	}
}

func TestDoPushesNotifications(t *testing.T) {
	fx := newFixture(t)
	fx.load()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, fx.wsURL)

	resp, pushed := call(t, ctx, conn, 1, common.MethodDo, common.DoParams{Index: -5})
	if resp.Error != nil {
		t.Fatalf("queue.do: %+v", resp.Error)
	}
	var do common.DoResponse
	json.Unmarshal(resp.Result, &do)
	if do.Index != 0 {
		t.Fatalf("expected clamped index 0, got %d", do.Index)
	}

	// the intent is pushed before the response; completions follow
	finished, most := 0, 0
	sawIntent := false
	onFinished := func(f *frame) {
		finished++
		var n common.FinishedNotification
		json.Unmarshal(f.Params, &n)
		if n.Pages != 4 || n.Complete {
			t.Fatalf("unexpected notification %+v", n)
		}
		most = max(most, n.Finished)
	}
	for _, f := range pushed {
		switch f.Method {
		case common.NotifyDo:
			sawIntent = true
		case common.NotifyFinished:
			onFinished(f)
		}
	}
	if !sawIntent {
		t.Fatal("expected a queue.onDo push")
	}
	for finished < 3 {
		if f := readFrame(t, ctx, conn); f.Method == common.NotifyFinished {
			onFinished(f)
		}
	}
	if most != 3 {
		t.Fatalf("expected a notification reporting 3 finished pages, got %d", most)
	}

	resp, _ = call(t, ctx, conn, 2, common.MethodStatus, nil)
	var st common.StatusResponse
	if err := json.Unmarshal(resp.Result, &st); err != nil {
		t.Fatalf("status: %v (error: %+v)", err, resp.Error)
	}
	if st.Title != "Vol 1" || st.CurrIndex != 0 || st.Finished != 3 || st.Pages != 4 || st.Complete {
		t.Fatalf("unexpected status %+v", st)
	}
	if fx.sess.Queue().FinishedCount() != 3 {
		t.Fatalf("finished = %d", fx.sess.Queue().FinishedCount())
	}
}

func TestDoInvalidDirection(t *testing.T) {
	fx := newFixture(t)
	fx.load()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, fx.wsURL)

	resp, _ := call(t, ctx, conn, 1, common.MethodDo, common.DoParams{Index: 0, Direction: "up"})
	if resp.Error == nil || resp.Error.Code != int(codeInvalidParams) {
		t.Fatalf("expected invalid params, got %+v", resp.Error)
	}
}

func TestCherryPick(t *testing.T) {
	fx := newFixture(t)
	fx.load()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, fx.wsURL)

	call(t, ctx, conn, 1, common.MethodCherryPick, common.CherryPickParams{Index: 0, Positive: true})
	resp, _ := call(t, ctx, conn, 2, common.MethodCherryPick, common.CherryPickParams{Index: 2, Positive: true, Shift: true})
	var cp common.CherryPickResponse
	if err := json.Unmarshal(resp.Result, &cp); err != nil {
		t.Fatalf("cherryPick: %v (error: %+v)", err, resp.Error)
	}
	if cp.Ranges != "1-3" {
		t.Fatalf("ranges = %q, want 1-3", cp.Ranges)
	}

	resp, _ = call(t, ctx, conn, 3, common.MethodCherryPick, common.CherryPickParams{Index: 9})
	if resp.Error == nil || resp.Error.Code != int(codeInvalidParams) {
		t.Fatalf("expected invalid params, got %+v", resp.Error)
	}
}

func TestClientsTracksConnections(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := cws.Dial(ctx, fx.wsURL, &cws.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + testSecret}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	call(t, ctx, conn, 1, common.MethodGetVersion, nil)
	if fx.srv.Clients() != 1 {
		t.Fatalf("clients = %d, want 1", fx.srv.Clients())
	}
	conn.Close(cws.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for fx.srv.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed client never dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDropsUnreachableClients(t *testing.T) {
	h := newHub(nil)
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	cli := channel.Line(cr, cw)
	srv := jrpc2.NewServer(handler.Map{}, &jrpc2.ServerOptions{AllowPush: true}).Start(channel.Line(sr, sw))
	leave := h.join(srv, "pipe")

	cli.Close()
	_ = srv.Wait()
	if n := h.push(common.NotifyDo, &common.DoNotification{Index: 1}); n != 1 {
		t.Fatalf("dropped = %d, want 1", n)
	}
	if h.size() != 0 {
		t.Fatalf("size = %d, want 0", h.size())
	}
	leave()
	if h.size() != 0 {
		t.Fatal("leave after a drop should be a no-op")
	}
}

func TestFinishedNotificationWithoutQueue(t *testing.T) {
	p := finishedNotification(fetchq.FinishedReported{Index: 4})
	if p.Index != 4 || p.Pages != 0 || p.Complete {
		t.Fatalf("unexpected notification %+v", p)
	}
}
