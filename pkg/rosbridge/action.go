package rosbridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-nav2d/pkg/rosmsg"
)

// GoalHandle tracks one outbound action goal.
type GoalHandle interface {
	ID() string
	// Result delivers the terminal result once; it is never closed.
	Result() <-chan rosmsg.ActionResult
	Status() rosmsg.GoalStatusCode
	Cancel() error
}

// ActionClient speaks the actionlib topic convention through rosbridge:
// goals go out on <server>/goal, cancels on <server>/cancel, and results,
// status and feedback come back on the matching topics.
type ActionClient struct {
	client     *Client
	server     string
	actionType string
	logger     *slog.Logger

	mu    sync.Mutex
	goals map[string]*Goal
	subs  []Subscription

	// OnFeedback is called for feedback on goals sent by this client.
	OnFeedback func(goalID string, feedback json.RawMessage)
}

// NewActionClient advertises the goal and cancel topics and subscribes to
// result, status and feedback. actionType is the action message type, e.g.
// "move_base_msgs/MoveBaseAction".
func NewActionClient(client *Client, server, actionType string, logger *slog.Logger) (*ActionClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &ActionClient{
		client:     client,
		server:     server,
		actionType: actionType,
		logger:     logger.With("action_server", server),
		goals:      make(map[string]*Goal),
	}

	if err := client.Advertise(a.topic("goal"), actionType+"Goal"); err != nil {
		return nil, err
	}
	if err := client.Advertise(a.topic("cancel"), rosmsg.TypeGoalID); err != nil {
		return nil, err
	}

	subs := []struct {
		topic   string
		msgType string
		handler Handler
	}{
		{a.topic("result"), actionType + "Result", a.handleResult},
		{a.topic("status"), rosmsg.TypeGoalStatusArray, a.handleStatus},
		{a.topic("feedback"), actionType + "Feedback", a.handleFeedback},
	}
	for _, s := range subs {
		sub, err := client.Subscribe(s.topic, s.msgType, 0, s.handler)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.subs = append(a.subs, sub)
	}

	return a, nil
}

func (a *ActionClient) topic(suffix string) string {
	return a.server + "/" + suffix
}

// SendGoal publishes goal under a fresh goal ID.
func (a *ActionClient) SendGoal(goal any) (GoalHandle, error) {
	g := &Goal{
		id:     fmt.Sprintf("goal_%s", uuid.New().String()),
		action: a,
		result: make(chan rosmsg.ActionResult, 1),
	}

	a.mu.Lock()
	a.goals[g.id] = g
	a.mu.Unlock()

	msg := rosmsg.ActionGoal{
		Header: rosmsg.Header{Stamp: rosmsg.FromTime(time.Now())},
		GoalID: rosmsg.GoalID{ID: g.id, Stamp: rosmsg.FromTime(time.Now())},
		Goal:   goal,
	}
	if err := a.client.Publish(a.topic("goal"), msg); err != nil {
		a.forget(g.id)
		return nil, err
	}

	a.logger.Debug("goal sent", "goal_id", g.id)
	return g, nil
}

func (a *ActionClient) forget(id string) {
	a.mu.Lock()
	delete(a.goals, id)
	a.mu.Unlock()
}

func (a *ActionClient) lookup(id string) *Goal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.goals[id]
}

// Pending returns the number of goals awaiting a result.
func (a *ActionClient) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.goals)
}

func (a *ActionClient) handleResult(raw json.RawMessage) {
	var res rosmsg.ActionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		a.logger.Warn("failed to decode action result", "error", err)
		return
	}

	g := a.lookup(res.Status.GoalID.ID)
	if g == nil {
		return // Someone else's goal
	}
	a.forget(g.id)
	g.status.Store(uint32(res.Status.Status))

	select {
	case g.result <- res:
	default:
	}
}

func (a *ActionClient) handleStatus(raw json.RawMessage) {
	var arr rosmsg.GoalStatusArray
	if err := json.Unmarshal(raw, &arr); err != nil {
		a.logger.Warn("failed to decode goal status", "error", err)
		return
	}
	for _, st := range arr.StatusList {
		if g := a.lookup(st.GoalID.ID); g != nil {
			g.status.Store(uint32(st.Status))
		}
	}
}

func (a *ActionClient) handleFeedback(raw json.RawMessage) {
	if a.OnFeedback == nil {
		return
	}
	var fb rosmsg.ActionFeedback
	if err := json.Unmarshal(raw, &fb); err != nil {
		a.logger.Warn("failed to decode action feedback", "error", err)
		return
	}
	if a.lookup(fb.Status.GoalID.ID) != nil {
		a.OnFeedback(fb.Status.GoalID.ID, fb.Feedback)
	}
}

// Close drops the result, status and feedback subscriptions.
func (a *ActionClient) Close() error {
	var firstErr error
	for _, s := range a.subs {
		if err := s.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.subs = nil
	return firstErr
}

// Goal is an action goal sent through an ActionClient.
type Goal struct {
	id     string
	action *ActionClient
	result chan rosmsg.ActionResult
	status atomic.Uint32
}

// ID returns the actionlib goal ID.
func (g *Goal) ID() string { return g.id }

// Result implements GoalHandle.
func (g *Goal) Result() <-chan rosmsg.ActionResult { return g.result }

// Status returns the last known goal status.
func (g *Goal) Status() rosmsg.GoalStatusCode {
	return rosmsg.GoalStatusCode(g.status.Load())
}

// Cancel asks the action server to preempt the goal.
func (g *Goal) Cancel() error {
	return g.action.client.Publish(g.action.topic("cancel"), rosmsg.GoalID{ID: g.id})
}

var _ GoalHandle = (*Goal)(nil)
