package realtime

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeConn struct {
	in     chan []byte
	out    chan Message
	once   sync.Once
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 8), out: make(chan Message, 64), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-f.in:
		return websocket.TextMessage, b, nil
	case <-f.closed:
		return 0, nil, errors.New("closed")
	}
}

func (f *fakeConn) WriteMessage(mt int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	if mt != websocket.TextMessage {
		return nil
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	f.out <- m
	return nil
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) Close() error                      { f.once.Do(func() { close(f.closed) }); return nil }
func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// next returns the next frame of the given type.
func next(t *testing.T, f *fakeConn, typ string) Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-f.out:
			if m.Type == typ {
				return m
			}
		case <-deadline:
			t.Fatalf("no %s frame received", typ)
		}
	}
}

func TestHub_BroadcastWithinGroup(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(nil, 16)
	a, b, other := newFakeConn(), newFakeConn(), newFakeConn()
	ca := h.Join("g1", "ana", a)
	cb := h.Join("g1", "ben", b)
	co := h.Join("g2", "cid", other)

	var wg sync.WaitGroup
	for _, c := range []*Client{ca, cb, co} {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			h.Serve(c)
		}(c)
	}

	a.in <- []byte(`{"type":"message","body":"  hola milonga  "}`)

	got := next(t, b, TypeMessage)
	assert.Equal(t, "g1", got.GroupID)
	assert.Equal(t, "ana", got.UserID)
	assert.Equal(t, "hola milonga", got.Body)
	assert.False(t, got.SentAt.IsZero())
	assert.Equal(t, "hola milonga", next(t, a, TypeMessage).Body)

	assert.ElementsMatch(t, []string{"ana", "ben"}, h.Online("g1"))

	h.Shutdown()
	wg.Wait()

	assert.Empty(t, h.Online("g1"))
	for len(other.out) > 0 {
		assert.NotEqual(t, TypeMessage, (<-other.out).Type)
	}
}

func TestHub_InvalidBodyOnlyErrorsSender(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(nil, 16)
	a, b := newFakeConn(), newFakeConn()
	ca, cb := h.Join("g1", "ana", a), h.Join("g1", "ben", b)
	done := make(chan struct{}, 2)
	go func() { h.Serve(ca); done <- struct{}{} }()
	go func() { h.Serve(cb); done <- struct{}{} }()

	a.in <- []byte(`{"body":"   "}`)
	assert.Equal(t, ErrInvalidBody.Error(), next(t, a, TypeError).Body)

	a.in <- []byte(`{"type":"shout","body":"x"}`)
	assert.Equal(t, "unknown message type", next(t, a, TypeError).Body)

	a.in <- []byte(`not json`)
	assert.Equal(t, "invalid message format", next(t, a, TypeError).Body)

	h.Shutdown()
	<-done
	<-done
	for len(b.out) > 0 {
		m := <-b.out
		assert.NotEqual(t, TypeError, m.Type)
		assert.NotEqual(t, TypeMessage, m.Type)
	}
}

func TestHub_PresenceOnJoinAndLeave(t *testing.T) {
	h := NewHub(nil, 16)
	a := newFakeConn()
	ca := h.Join("g1", "ana", a)
	b := newFakeConn()
	cb := h.Join("g1", "ben", b)

	// ana's buffer holds her own join and ben's
	first := <-ca.send
	second := <-ca.send
	var m1, m2 Message
	require.NoError(t, json.Unmarshal(first, &m1))
	require.NoError(t, json.Unmarshal(second, &m2))
	assert.Equal(t, "ana", m1.UserID)
	assert.Equal(t, "ben", m2.UserID)
	require.NotNil(t, m2.Online)
	assert.True(t, *m2.Online)

	h.Leave(cb)
	h.Leave(cb)
	var m3 Message
	require.NoError(t, json.Unmarshal(<-ca.send, &m3))
	assert.Equal(t, TypePresence, m3.Type)
	assert.Equal(t, "ben", m3.UserID)
	assert.False(t, *m3.Online)
	assert.Equal(t, []string{"ana"}, h.Online("g1"))
	h.Leave(ca)
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := NewHub(nil, 1)
	slow := newFakeConn()
	c := h.Join("g1", "ana", slow) // own presence fills the buffer

	h.Broadcast(Message{Type: TypeMessage, GroupID: "g1", UserID: "ben", Body: "hi"})

	assert.True(t, slow.isClosed())
	assert.Empty(t, h.Online("g1"))
	_, open := <-c.send
	assert.True(t, open) // buffered presence frame remains
	_, open = <-c.send
	assert.False(t, open)
}

func TestValidateBody(t *testing.T) {
	got, err := ValidateBody("  ¡hola!  ")
	require.NoError(t, err)
	assert.Equal(t, "¡hola!", got)

	_, err = ValidateBody(" \n ")
	assert.ErrorIs(t, err, ErrInvalidBody)

	_, err = ValidateBody(strings.Repeat("ñ", MaxBodyRunes))
	assert.NoError(t, err)
	_, err = ValidateBody(strings.Repeat("ñ", MaxBodyRunes+1))
	assert.ErrorIs(t, err, ErrInvalidBody)
}
