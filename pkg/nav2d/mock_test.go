package nav2d

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-nav2d/pkg/geom"
	"github.com/teslashibe/go-nav2d/pkg/rosbridge"
	"github.com/teslashibe/go-nav2d/pkg/rosmsg"
	"github.com/teslashibe/go-nav2d/pkg/scene"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	d := a - b
	return d < floatTolerance && d > -floatTolerance
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockView is a view with a settable zoom.
type mockView struct {
	zoom scene.Scale
}

func (v *mockView) ViewScale() scene.Scale { return v.zoom }

func (v *mockView) HeadingToRotation(q geom.Quaternion) float64 {
	return geom.HeadingDegrees(q)
}

// mockFeed records subscriptions and lets tests deliver messages.
type mockFeed struct {
	mu       sync.Mutex
	subs     map[string]*mockSub
	failWith error
}

type mockSub struct {
	feed     *mockFeed
	topic    string
	msgType  string
	throttle time.Duration
	handler  rosbridge.Handler
	closed   bool
}

func (s *mockSub) Topic() string { return s.topic }

func (s *mockSub) Unsubscribe() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.closed = true
	return nil
}

func newMockFeed() *mockFeed {
	return &mockFeed{subs: make(map[string]*mockSub)}
}

func (f *mockFeed) Subscribe(topic, msgType string, throttle time.Duration, handler rosbridge.Handler) (rosbridge.Subscription, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &mockSub{feed: f, topic: topic, msgType: msgType, throttle: throttle, handler: handler}
	f.subs[topic] = sub
	return sub, nil
}

func (f *mockFeed) sub(topic string) *mockSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[topic]
}

func (f *mockFeed) deliver(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.sub(topic).handler(data)
}

// mockActions hands out mockHandles and records the goals sent.
type mockActions struct {
	mu      sync.Mutex
	goals   []any
	handles []*mockHandle
	err     error
	seq     int
}

func (a *mockActions) SendGoal(goal any) (rosbridge.GoalHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.seq++
	h := &mockHandle{
		id:     fmt.Sprintf("goal_%d", a.seq),
		result: make(chan rosmsg.ActionResult, 1),
	}
	h.status.Store(uint32(rosmsg.StatusPending))
	a.goals = append(a.goals, goal)
	a.handles = append(a.handles, h)
	return h, nil
}

type mockHandle struct {
	id       string
	result   chan rosmsg.ActionResult
	status   atomic.Uint32
	canceled atomic.Bool
}

func (h *mockHandle) ID() string                         { return h.id }
func (h *mockHandle) Result() <-chan rosmsg.ActionResult { return h.result }

func (h *mockHandle) Status() rosmsg.GoalStatusCode {
	return rosmsg.GoalStatusCode(h.status.Load())
}

func (h *mockHandle) Cancel() error {
	h.canceled.Store(true)
	h.status.Store(uint32(rosmsg.StatusPreempting))
	return nil
}

func (h *mockHandle) finish(code rosmsg.GoalStatusCode) {
	h.status.Store(uint32(code))
	h.result <- rosmsg.ActionResult{Status: rosmsg.GoalStatus{GoalID: rosmsg.GoalID{ID: h.id}, Status: code}}
}

// testDeps returns deps over a fresh root with zoom 0.5, so the inverse
// zoom is (2, 2).
func testDeps() (Deps, *mockView) {
	view := &mockView{zoom: scene.Scale{X: 0.5, Y: 0.5}}
	return Deps{
		Root:   scene.NewContainer(),
		View:   view,
		Logger: quietLogger(),
	}, view
}
