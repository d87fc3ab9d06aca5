package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/core"
	"github.com/dkeye/HouseParty/internal/domain"
)

type recordingConn struct {
	mu     sync.Mutex
	frames []core.Frame
	err    error
	closed bool
}

func (r *recordingConn) TrySend(f core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *recordingConn) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *recordingConn) events(t *testing.T) []envelopeIn {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]envelopeIn, 0, len(r.frames))
	for _, f := range r.frames {
		var e envelopeIn
		if err := json.Unmarshal(f, &e); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		out = append(out, e)
	}
	return out
}

type envelopeIn struct {
	Type         string          `json:"type"`
	Event        string          `json:"event"`
	Data         json.RawMessage `json:"data"`
	ConnectionID string          `json:"connectionId"`
}

func newTestHub() *Hub {
	return NewHub(Options{PublicURL: "http://party.local/", Secret: "test-secret"})
}

func TestNegotiateIssuesParsableToken(t *testing.T) {
	h := newTestHub()
	n, err := h.Negotiate()
	if err != nil {
		t.Fatal(err)
	}
	if n.URL != "ws://party.local"+RealtimePath {
		t.Fatalf("url = %q", n.URL)
	}
	id, err := h.tokens.Parse(n.AccessToken)
	if err != nil || id == "" {
		t.Fatalf("parse = %q, %v", id, err)
	}
	if _, err := h.tokens.Parse(n.AccessToken + "x"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("tampered token accepted: %v", err)
	}

	other := NewHub(Options{Secret: "test-secret"})
	if got, err := other.tokens.Parse(n.AccessToken); err != nil || got != id {
		t.Fatalf("instances sharing a secret must accept each other's tokens: %q %v", got, err)
	}
}

func TestRealtimeURL(t *testing.T) {
	tests := map[string]string{
		"https://party.example.com": "wss://party.example.com" + RealtimePath,
		"http://localhost:8080/":    "ws://localhost:8080" + RealtimePath,
		"":                          RealtimePath,
	}
	for in, want := range tests {
		if got := realtimeURL(in); got != want {
			t.Errorf("realtimeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBroadcastReachesGroupMembersOnly(t *testing.T) {
	h := newTestHub()
	ctx := context.Background()
	a, b, outsider := &recordingConn{}, &recordingConn{}, &recordingConn{}
	h.registry.Bind("a", a)
	h.registry.Bind("b", b)
	h.registry.Bind("x", outsider)

	for _, id := range []domain.ConnectionID{"a", "b", "a"} {
		if err := h.AddToGroup(ctx, id, "room:r1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.BroadcastToGroup(ctx, "room:r1", core.EventCounterUpdated, 3); err != nil {
		t.Fatal(err)
	}

	for name, c := range map[string]*recordingConn{"a": a, "b": b} {
		ev := c.events(t)
		if len(ev) != 1 || ev[0].Event != core.EventCounterUpdated || string(ev[0].Data) != "3" {
			t.Fatalf("%s got %+v", name, ev)
		}
	}
	if len(outsider.events(t)) != 0 {
		t.Fatal("outsider received a group broadcast")
	}
}

func TestBroadcastSkipsSlowMember(t *testing.T) {
	h := newTestHub()
	ctx := context.Background()
	slow := &recordingConn{err: ErrBackpressure}
	fast := &recordingConn{}
	h.registry.Bind("slow", slow)
	h.registry.Bind("fast", fast)
	_ = h.AddToGroup(ctx, "slow", "g")
	_ = h.AddToGroup(ctx, "fast", "g")

	if err := h.BroadcastToGroup(ctx, "g", "e", "x"); err != nil {
		t.Fatalf("slow member must not fail the broadcast: %v", err)
	}
	if len(fast.events(t)) != 1 {
		t.Fatal("fast member missed the broadcast")
	}
}

func TestSendToConnection(t *testing.T) {
	h := newTestHub()
	ctx := context.Background()
	c := &recordingConn{}
	h.registry.Bind("c", c)

	if err := h.SendToConnection(ctx, "c", core.EventCounterUpdated, 7); err != nil {
		t.Fatal(err)
	}
	if ev := c.events(t); len(ev) != 1 || string(ev[0].Data) != "7" {
		t.Fatalf("got %+v", ev)
	}
	if err := h.SendToConnection(ctx, "ghost", "e", 1); !errors.Is(err, domain.ErrBroadcastUnavailable) {
		t.Fatalf("expected ErrBroadcastUnavailable, got %v", err)
	}
}

func TestCancelledContextFailsFast(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.BroadcastToGroup(ctx, "g", "e", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("broadcast: %v", err)
	}
	if err := h.AddToGroup(ctx, "c", "g"); !errors.Is(err, context.Canceled) {
		t.Fatalf("add: %v", err)
	}
	if h.opened.Load() {
		t.Fatal("cancelled calls must not open the hub context")
	}
}

func TestAddToGroupRequiresConnectionID(t *testing.T) {
	h := newTestHub()
	if err := h.AddToGroup(context.Background(), "", "g"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("got %v", err)
	}
}

func TestConcurrentFirstUseOpensOnce(t *testing.T) {
	h := newTestHub()
	opens := 0
	var mu sync.Mutex
	h.open = sync.OnceValues(func() (*hubContext, error) {
		mu.Lock()
		opens++
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		h.opened.Store(true)
		return &hubContext{}, nil
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.BroadcastToGroup(context.Background(), "g", "e", nil)
		}()
	}
	wg.Wait()
	if opens != 1 {
		t.Fatalf("hub context opened %d times", opens)
	}
}

func TestCloseOnce(t *testing.T) {
	h := newTestHub()
	c := &recordingConn{}
	h.registry.Bind("c", c)
	_ = h.BroadcastToGroup(context.Background(), "g", "e", nil)

	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		t.Fatal("close must disconnect local clients")
	}
	if err := h.BroadcastToGroup(context.Background(), "g", "e", nil); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("broadcast after close: %v", err)
	}
}

func TestDeliverRemote(t *testing.T) {
	h := newTestHub()
	c := &recordingConn{}
	h.registry.Bind("c", c)

	h.deliverRemote(bridgeMessage{Kind: kindJoin, Target: "c", Group: "room:r"})
	h.deliverRemote(bridgeMessage{Kind: kindJoin, Target: "late", Group: "room:r"})
	if groups := h.registry.GroupsOf("late"); len(groups) != 1 || groups[0] != "room:r" {
		t.Fatalf("remote join for an unbound connection must be kept, groups = %v", groups)
	}

	frame, _ := encodeEvent(core.EventPlayerRosterUpdated, []domain.Player{{Number: 1, Name: "Ann"}})
	h.deliverRemote(bridgeMessage{Kind: kindGroup, Target: "room:r", Frame: frame})
	h.deliverRemote(bridgeMessage{Kind: kindConnection, Target: "c", Frame: frame})

	if ev := c.events(t); len(ev) != 2 || ev[0].Event != core.EventPlayerRosterUpdated {
		t.Fatalf("got %+v", ev)
	}

	late := &recordingConn{}
	h.registry.Bind("late", late)
	h.deliverRemote(bridgeMessage{Kind: kindGroup, Target: "room:r", Frame: frame})
	if len(late.events(t)) != 1 {
		t.Fatal("connection bound after a remote join missed the group broadcast")
	}
}

func TestDeliverRemoteLogsBackpressure(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	h := newTestHub()
	h.registry.Bind("slow", &recordingConn{err: ErrBackpressure})
	frame, _ := encodeEvent(core.EventCounterUpdated, 1)
	h.deliverRemote(bridgeMessage{Kind: kindConnection, Target: "slow", Frame: frame})

	out := buf.String()
	if !strings.Contains(out, "dropped remote frame") || !strings.Contains(out, ErrBackpressure.Error()) {
		t.Fatalf("backpressure not logged: %s", out)
	}
}

func TestAttachAfterCloseDisconnects(t *testing.T) {
	h := newTestHub()
	old := &recordingConn{}
	if !h.attach("c", old) {
		t.Fatal("attach on an open hub must succeed")
	}
	fresh := &recordingConn{}
	if !h.attach("c", fresh) {
		t.Fatal("reattach must succeed")
	}
	old.mu.Lock()
	replaced := old.closed
	old.mu.Unlock()
	if !replaced {
		t.Fatal("replaced socket must be closed")
	}

	_ = h.Close()
	late := &recordingConn{}
	if h.attach("d", late) {
		t.Fatal("attach after Close must fail")
	}
	late.mu.Lock()
	closed := late.closed
	late.mu.Unlock()
	if !closed {
		t.Fatal("socket bound after Close must be closed")
	}
	if _, ok := h.registry.Connection("d"); ok {
		t.Fatal("socket bound after Close must not stay registered")
	}
}

func TestWebsocketEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHub()
	t.Cleanup(func() { _ = h.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.GET(RealtimePath, func(c *gin.Context) { h.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	n, err := h.Negotiate()
	if err != nil {
		t.Fatal(err)
	}
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + RealtimePath + "?access_token=" + url.QueryEscape(n.AccessToken)
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello envelopeIn
	if err := ws.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}
	if hello.Type != "connected" || hello.ConnectionID == "" {
		t.Fatalf("hello = %+v", hello)
	}

	id := domain.ConnectionID(hello.ConnectionID)
	if err := h.AddToGroup(ctx, id, "room:e2e"); err != nil {
		t.Fatal(err)
	}
	if err := h.BroadcastToGroup(ctx, "room:e2e", core.EventMousePresenceUpdated,
		domain.Presence{PlayerNumber: 1, Name: "Ann", X: 10, Y: 20}); err != nil {
		t.Fatal(err)
	}
	var ev envelopeIn
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	var p domain.Presence
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.X != 10 || p.Y != 20 {
		t.Fatalf("event = %+v (%v)", ev, err)
	}

	if err := ws.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatal(err)
	}
	var pong envelopeIn
	if err := ws.ReadJSON(&pong); err != nil || pong.Type != "pong" {
		t.Fatalf("pong = %+v, %v", pong, err)
	}
}

func TestHandleSignalRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHub()
	r := gin.New()
	r.GET(RealtimePath, func(c *gin.Context) { h.HandleSignal(context.Background(), c) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, RealtimePath+"?access_token=nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}
