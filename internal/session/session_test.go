package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/driftline/driftline/internal/game"
	"github.com/driftline/driftline/internal/protocol"
)

type recordingSink struct {
	inputs []game.Input
	starts []string
}

func (r *recordingSink) Input(_ string, in game.Input) { r.inputs = append(r.inputs, in) }
func (r *recordingSink) Start(playerID string) { r.starts = append(r.starts, playerID) }

type recordingSender struct {
	frames [][]byte
	fail   bool
}

func (r *recordingSender) Send(frame []byte) bool {
	if r.fail {
		return false
	}
	r.frames = append(r.frames, frame)
	return true
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSession() (*Session, *recordingSink, *recordingSender, *fakeClock) {
	sink := &recordingSink{}
	out := &recordingSender{}
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := New("p1", sink, out, Options{ShotCooldown: 120 * time.Millisecond, Now: clock.Now})
	return s, sink, out, clock
}

// ---------------------------------------------------------------------------
// Shot cooldown
// ---------------------------------------------------------------------------

func TestShotCooldownSuppressesSecondShot(t *testing.T) {
	s, sink, _, clock := newTestSession()

	s.HandleFrame([]byte(`{"type":"input","moveX":1,"shoot":true,"shotId":"abc"}`))
	clock.Advance(50 * time.Millisecond)
	s.HandleFrame([]byte(`{"type":"input","moveX":1,"shoot":true,"shotId":"def"}`))

	if len(sink.inputs) != 2 {
		t.Fatalf("forwarded %d inputs, want 2", len(sink.inputs))
	}
	first, second := sink.inputs[0], sink.inputs[1]
	if !first.Shoot || first.ShotID != "abc" {
		t.Fatalf("first input = %+v, want accepted shot abc", first)
	}
	if second.Shoot || second.ShotID != "" {
		t.Fatalf("second input = %+v, want downgraded to a move", second)
	}
	if second.MoveX != 1 {
		t.Fatalf("move component lost: %+v", second)
	}
}

func TestShotCooldownBoundary(t *testing.T) {
	tests := []struct {
		gap  time.Duration
		both bool
	}{
		{119 * time.Millisecond, false},
		{120 * time.Millisecond, true},
		{121 * time.Millisecond, true},
	}
	for _, tt := range tests {
		s, sink, _, clock := newTestSession()
		s.HandleFrame([]byte(`{"type":"input","shoot":true}`))
		clock.Advance(tt.gap)
		s.HandleFrame([]byte(`{"type":"input","shoot":true}`))
		if got := sink.inputs[1].Shoot; got != tt.both {
			t.Errorf("gap %v: second shot accepted = %v, want %v", tt.gap, got, tt.both)
		}
	}
}

func TestRejectedShotDoesNotResetCooldown(t *testing.T) {
	s, sink, _, clock := newTestSession()
	s.HandleFrame([]byte(`{"type":"input","shoot":true}`))
	clock.Advance(100 * time.Millisecond)
	s.HandleFrame([]byte(`{"type":"input","shoot":true}`))
	clock.Advance(30 * time.Millisecond)
	s.HandleFrame([]byte(`{"type":"input","shoot":true}`))
	if sink.inputs[1].Shoot || !sink.inputs[2].Shoot {
		t.Fatalf("cooldown measured from the wrong shot: %+v", sink.inputs)
	}
}

func TestEmptyShotIDNotForwarded(t *testing.T) {
	s, sink, _, _ := newTestSession()
	s.HandleFrame([]byte(`{"type":"input","shoot":true,"shotId":""}`))
	if !sink.inputs[0].Shoot || sink.inputs[0].ShotID != "" {
		t.Fatalf("input = %+v", sink.inputs[0])
	}
}

func TestLastInputTracked(t *testing.T) {
	s, _, _, clock := newTestSession()
	s.HandleFrame([]byte(`{"type":"input","moveX":-0.25,"x":44}`))
	in, at := s.LastInput()
	if in.MoveX != -0.25 || in.X == nil || *in.X != 44 || !at.Equal(clock.Now()) {
		t.Fatalf("last input = %+v at %v", in, at)
	}
}

// ---------------------------------------------------------------------------
// Ping, start, liveness
// ---------------------------------------------------------------------------

func TestPingRepliesWithPong(t *testing.T) {
	s, sink, out, clock := newTestSession()
	received := clock.Now()
	s.HandleFrame([]byte(`{"type":"ping","t":12345}`))

	if len(out.frames) != 1 {
		t.Fatalf("sent %d frames, want exactly 1 pong", len(out.frames))
	}
	var pong protocol.Pong
	if err := json.Unmarshal(out.frames[0], &pong); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if pong.Type != protocol.TypePong || pong.T != 12345 {
		t.Fatalf("pong = %+v", pong)
	}
	if pong.ServerTime < received.UnixMilli() {
		t.Fatalf("serverTime %d before receipt %d", pong.ServerTime, received.UnixMilli())
	}
	if len(sink.inputs) != 0 || len(sink.starts) != 0 {
		t.Fatal("ping should not reach the room")
	}
}

func TestPongSendFailureIsSwallowed(t *testing.T) {
	s, _, out, _ := newTestSession()
	out.fail = true
	s.HandleFrame([]byte(`{"type":"ping","t":1}`))
}

func TestStartForwarded(t *testing.T) {
	s, sink, _, _ := newTestSession()
	s.HandleFrame([]byte(`{"type":"start"}`))
	if len(sink.starts) != 1 || sink.starts[0] != "p1" {
		t.Fatalf("starts = %v", sink.starts)
	}
}

func TestInvalidFrameHasNoSideEffects(t *testing.T) {
	var dropped []error
	sink := &recordingSink{}
	out := &recordingSender{}
	clock := &fakeClock{t: time.UnixMilli(1_000)}
	s := New("p1", sink, out, Options{
		ShotCooldown: 120 * time.Millisecond,
		Now:          clock.Now,
		OnDrop:       func(err error) { dropped = append(dropped, err) },
	})
	seen := s.LastSeen()

	clock.Advance(time.Second)
	s.HandleFrame([]byte(`{"type":"teleport"}`))
	s.HandleFrame([]byte(`garbage`))

	if len(sink.inputs)+len(sink.starts)+len(out.frames) != 0 {
		t.Fatal("invalid frames produced side effects")
	}
	if !s.LastSeen().Equal(seen) {
		t.Fatal("invalid frames should not refresh liveness")
	}
	if len(dropped) != 2 || !errors.Is(dropped[0], protocol.ErrUnknownType) || !errors.Is(dropped[1], protocol.ErrMalformed) {
		t.Fatalf("drops = %v", dropped)
	}
}

func TestIdle(t *testing.T) {
	s, _, _, clock := newTestSession()
	clock.Advance(20 * time.Second)
	if s.Idle(clock.Now(), 30*time.Second) {
		t.Fatal("not idle yet")
	}
	s.HandleFrame([]byte(`{"type":"ping","t":1}`))
	clock.Advance(29 * time.Second)
	if s.Idle(clock.Now(), 30*time.Second) {
		t.Fatal("ping should refresh liveness")
	}
	clock.Advance(2 * time.Second)
	if !s.Idle(clock.Now(), 30*time.Second) {
		t.Fatal("should be idle after 31s of silence")
	}
}
