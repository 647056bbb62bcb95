package nav2d

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/teslashibe/go-nav2d/pkg/geom"
	"github.com/teslashibe/go-nav2d/pkg/rosbridge"
	"github.com/teslashibe/go-nav2d/pkg/rosmsg"
	"github.com/teslashibe/go-nav2d/pkg/scene"
)

// GoalSelector turns a press-and-drag gesture into a goal pose and sends
// goals to the navigation action server.
//
// Selection: StartSelection anchors the goal position, UpdateSelection
// orients it, EndSelection returns the pose. SendGoal is independent of the
// selection state.
type GoalSelector struct {
	cfg      GoalConfig
	view     scene.View
	actions  ActionSender
	dispatch func(func())
	logger   *slog.Logger

	container *scene.Container
	indicator *scene.Arrow
	anchor    *geom.Position2D
	scale     ScaleLifecycle

	pending map[string]*PendingGoal
}

// NewGoalSelector attaches a goal layer to deps.Root.
func NewGoalSelector(cfg GoalConfig, deps Deps) (*GoalSelector, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	g := &GoalSelector{
		cfg:       cfg,
		view:      deps.View,
		actions:   deps.Actions,
		dispatch:  deps.dispatcher(),
		logger:    deps.logger().With("component", "goal"),
		container: scene.NewContainer(),
		pending:   make(map[string]*PendingGoal),
	}

	g.indicator = scene.NewArrow(scene.ArrowOptions{
		Size:       cfg.IndicatorSize,
		StrokeSize: 1,
		FillColor:  *cfg.IndicatorColor,
	})
	g.indicator.Visible = false
	g.container.Add(g.indicator)
	deps.Root.Add(g.container)

	return g, nil
}

// Config returns the effective configuration.
func (g *GoalSelector) Config() GoalConfig { return g.cfg }

// Indicator returns the orientation indicator shown during selection.
func (g *GoalSelector) Indicator() *scene.Arrow { return g.indicator }

// Container returns the layer holding the indicator and goal markers.
func (g *GoalSelector) Container() *scene.Container { return g.container }

// InitScale captures the current inverse zoom for goal markers.
func (g *GoalSelector) InitScale() error {
	_, err := g.scale.Init(g.view)
	if errors.Is(err, ErrScaleAlreadyInitialized) {
		g.logger.Warn("scale has already been initialized")
	}
	return err
}

// ResetScale forgets the captured scale. Markers already drawn keep theirs.
func (g *GoalSelector) ResetScale() {
	g.scale.Reset()
}

// Selecting reports whether a selection is in progress.
func (g *GoalSelector) Selecting() bool {
	return g.anchor != nil
}

// StartSelection anchors a goal at pos and shows the orientation indicator.
// Starting again while selecting re-anchors.
func (g *GoalSelector) StartSelection(pos geom.Position2D) {
	anchor := pos
	g.anchor = &anchor

	sp := geom.ToScreen(pos)
	g.indicator.X = sp.X
	g.indicator.Y = sp.Y
	g.indicator.Rotation = 0
	g.indicator.SetScale(liveScale(g.view))
	g.indicator.Visible = true
}

// UpdateSelection points the indicator from the anchor towards pos.
func (g *GoalSelector) UpdateSelection(pos geom.Position2D) error {
	if g.anchor == nil {
		return fmt.Errorf("%w: update without start", ErrInvalidStateTransition)
	}
	g.indicator.SetScale(liveScale(g.view))
	g.indicator.Rotation = geom.DragRotation(*g.anchor, pos)
	return nil
}

// EndSelection hides the indicator and returns the selected pose. The
// heading is taken from the indicator so the goal matches what was drawn.
func (g *GoalSelector) EndSelection() (geom.Pose2D, error) {
	if g.anchor == nil {
		return geom.Pose2D{}, fmt.Errorf("%w: end without start", ErrInvalidStateTransition)
	}
	g.indicator.Visible = false
	pose := geom.Pose2D{
		Position: *g.anchor,
		Heading:  geom.RotationToQuaternion(g.indicator.Rotation),
	}
	g.anchor = nil
	return pose, nil
}

// CancelSelection abandons a selection in progress.
func (g *GoalSelector) CancelSelection() {
	g.indicator.Visible = false
	g.anchor = nil
}

// SendGoal sends pose to the action server and draws a goal marker until the
// goal resolves. ctx bounds the goal's lifetime together with the configured
// timeout: when either ends first the goal is cancelled on the server.
// The marker is removed exactly once, through the dispatcher.
func (g *GoalSelector) SendGoal(ctx context.Context, pose geom.Pose2D) (*PendingGoal, error) {
	if err := pose.Heading.Validate(); err != nil {
		return nil, err
	}
	factor, ok := g.scale.Factor()
	if !ok {
		return nil, ErrScaleNotInitialized
	}
	if g.actions == nil {
		return nil, ErrTransportUnavailable
	}

	goal := rosmsg.MoveBaseGoal{
		TargetPose: rosmsg.PoseStamped{
			Header: rosmsg.Header{FrameID: g.cfg.MapFrame, Stamp: rosmsg.FromTime(time.Now())},
			Pose:   rosmsg.FromPose2D(pose),
		},
	}
	handle, err := g.actions.SendGoal(goal)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}

	marker := scene.NewArrow(scene.ArrowOptions{
		Size:       g.cfg.MarkerSize,
		StrokeSize: 1,
		FillColor:  *g.cfg.MarkerColor,
		Pulse:      true,
	})
	sp := geom.ToScreen(pose.Position)
	marker.X = sp.X
	marker.Y = sp.Y
	marker.Rotation = g.view.HeadingToRotation(pose.Heading)
	marker.SetScale(factor)
	g.container.Add(marker)

	goalCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	pg := &PendingGoal{
		id:     handle.ID(),
		pose:   pose,
		sentAt: time.Now(),
		handle: handle,
		marker: marker,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	g.pending[pg.id] = pg

	g.logger.Info("goal sent", "id", pg.id,
		"x", pose.Position.X, "y", pose.Position.Y, "heading", pose.Heading.Heading())

	go g.await(goalCtx, pg)
	return pg, nil
}

func (g *GoalSelector) await(ctx context.Context, pg *PendingGoal) {
	var (
		status rosmsg.GoalStatusCode
		err    error
	)

	select {
	case res := <-pg.handle.Result():
		status = res.Status.Status
	case <-ctx.Done():
		err = ErrGoalCanceled
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrRequestTimeout
		}
		if cerr := pg.handle.Cancel(); cerr != nil {
			g.logger.Warn("failed to cancel goal", "id", pg.id, "error", cerr)
		}
		status = pg.handle.Status()
	}
	pg.cancel()

	g.dispatch(func() {
		g.container.Remove(pg.marker)
		delete(g.pending, pg.id)
		pg.finish(status, err)

		if err != nil {
			g.logger.Warn("goal abandoned", "id", pg.id, "error", err)
		} else {
			g.logger.Info("goal finished", "id", pg.id, "status", status)
		}
	})
}

// Pending returns the outstanding goals, oldest first.
func (g *GoalSelector) Pending() []*PendingGoal {
	out := make([]*PendingGoal, 0, len(g.pending))
	for _, pg := range g.pending {
		out = append(out, pg)
	}
	slices.SortFunc(out, func(a, b *PendingGoal) int {
		return a.sentAt.Compare(b.sentAt)
	})
	return out
}

// Lookup returns the outstanding goal with the given ID.
func (g *GoalSelector) Lookup(id string) (*PendingGoal, bool) {
	pg, ok := g.pending[id]
	return pg, ok
}

// CancelAll cancels every outstanding goal.
func (g *GoalSelector) CancelAll() {
	for _, pg := range g.Pending() {
		pg.Cancel()
	}
}

// PendingGoal is a goal awaiting its result. It is safe for concurrent use.
type PendingGoal struct {
	id     string
	pose   geom.Pose2D
	sentAt time.Time
	handle rosbridge.GoalHandle
	marker *scene.Arrow
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status rosmsg.GoalStatusCode
	err    error
}

// ID returns the goal ID.
func (p *PendingGoal) ID() string { return p.id }

// Pose returns the requested pose.
func (p *PendingGoal) Pose() geom.Pose2D { return p.pose }

// SentAt returns when the goal was sent.
func (p *PendingGoal) SentAt() time.Time { return p.sentAt }

// Done is closed once the goal has resolved and its marker is removed.
func (p *PendingGoal) Done() <-chan struct{} { return p.done }

// Err returns nil while pending or after a result, ErrRequestTimeout or
// ErrGoalCanceled otherwise. A result with a failure status is still a
// result.
func (p *PendingGoal) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Status returns the last known server-side status.
func (p *PendingGoal) Status() rosmsg.GoalStatusCode {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.status
	default:
		return p.handle.Status()
	}
}

// Cancel abandons the goal. It is a no-op once the goal has resolved.
func (p *PendingGoal) Cancel() {
	p.cancel()
}

func (p *PendingGoal) finish(status rosmsg.GoalStatusCode, err error) {
	p.mu.Lock()
	p.status = status
	p.err = err
	p.mu.Unlock()
	close(p.done)
}
