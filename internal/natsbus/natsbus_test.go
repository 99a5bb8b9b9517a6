package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/controller"
	"github.com/lox/cardroom/internal/frame"
	"github.com/lox/cardroom/internal/holdem"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/lox/cardroom/internal/table"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{subject, data})
	return p.err
}

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		out = append(out, m.subject)
	}
	return out
}

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "cardroom.main.frames.alice", FrameSubject("main", "alice"))
	assert.Equal(t, "cardroom.main.frames.$", FrameSubject("main", frame.Anonymous))
	assert.Equal(t, "cardroom.main.frames._", FrameSubject("main", "_"))
	assert.Equal(t, "cardroom.main.frames.a_b", FrameSubject("main", "a_b"))
	assert.Equal(t, "cardroom.main.frames.~C4N64", FrameSubject("main", "a.b"))
	assert.Equal(t, "cardroom.~D1KMEQ10EDQ62QR5EC.frames.alice", FrameSubject("high stakes", "alice"))
	assert.Equal(t, "cardroom.main.notices", NoticeSubject("main"))
	assert.Equal(t, "cardroom.main.status", StatusSubject("main"))
}

func TestFrameSubjectsAreDistinct(t *testing.T) {
	viewers := []string{
		frame.Anonymous, "_", "$", "~", "a.b", "a_b", "a*b", "a>b", "a b",
		"~C4N64", "C4N64", "alice", "Alice", "a-b", "..", "__",
	}
	seen := make(map[string]string)
	for _, v := range viewers {
		subject := FrameSubject("main", v)
		if prev, ok := seen[subject]; ok {
			t.Fatalf("viewers %q and %q share subject %s", prev, v, subject)
		}
		seen[subject] = v
		assert.NotContains(t, strings.TrimPrefix(subject, "cardroom.main.frames."), ".")
	}
}

func TestPublish(t *testing.T) {
	pub := &fakePublisher{}
	bus := New(pub, discardLogger())

	set := frame.Set{
		frame.Anonymous: {Pots: []int{3}},
		"alice":         {Pots: []int{3}},
	}
	u := controller.Update{
		Frames:      []frame.Set{set},
		Notice:      &controller.Notice{Users: []string{"alice"}, Message: "not your turn"},
		Unavailable: true,
	}
	require.NoError(t, bus.Publish("main", u))

	assert.Equal(t, []string{
		"cardroom.main.frames.$",
		"cardroom.main.frames.alice",
		"cardroom.main.notices",
		"cardroom.main.status",
	}, pub.subjects())

	var f frame.Frame
	require.NoError(t, json.Unmarshal(pub.msgs[1].data, &f))
	assert.Equal(t, []int{3}, f.Pots)

	var n controller.Notice
	require.NoError(t, json.Unmarshal(pub.msgs[2].data, &n))
	assert.Equal(t, "not your turn", n.Message)
}

func TestPublishReportsErrors(t *testing.T) {
	boom := errors.New("boom")
	bus := New(&fakePublisher{err: boom}, discardLogger())
	err := bus.Publish("main", controller.Update{Notice: &controller.Notice{Message: "x"}})
	assert.ErrorIs(t, err, boom)
}

func TestRelay(t *testing.T) {
	game, err := holdem.New(holdem.Settings{SmallBlind: 1, BigBlind: 2})
	require.NoError(t, err)
	tb, err := table.New(game, table.Config{
		SeatCount:        2,
		MinStartingStack: 10,
		MaxStartingStack: 100,
		Rand:             randutil.New(1),
		Logger:           discardLogger(),
	})
	require.NoError(t, err)

	c := controller.New("main", tb, controller.DefaultConfig(), controller.WithLogger(discardLogger()))
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	require.Eventually(t, func() bool { return c.Frames() != nil }, 2*time.Second, time.Millisecond)

	pub := &fakePublisher{}
	relayed := make(chan struct{})
	go func() {
		New(pub, discardLogger()).Relay(context.Background(), c)
		close(relayed)
	}()

	require.NoError(t, c.Handle("alice", "j 0"))
	require.Eventually(t, func() bool {
		for _, s := range pub.subjects() {
			if s == "cardroom.main.frames.alice" {
				return true
			}
		}
		return false
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, c.Terminate())
	require.NoError(t, <-done)
	<-relayed
}
