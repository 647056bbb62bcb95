package nav2d

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/teslashibe/go-nav2d/pkg/geom"
	"github.com/teslashibe/go-nav2d/pkg/rosmsg"
	"github.com/teslashibe/go-nav2d/pkg/scene"
)

func newTestSelector(t *testing.T, cfg GoalConfig) (*GoalSelector, *mockActions, *mockView) {
	t.Helper()
	deps, view := testDeps()
	actions := &mockActions{}
	deps.Actions = actions
	g, err := NewGoalSelector(cfg, deps)
	if err != nil {
		t.Fatalf("NewGoalSelector failed: %v", err)
	}
	return g, actions, view
}

func waitDone(t *testing.T, pg *PendingGoal) {
	t.Helper()
	select {
	case <-pg.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("goal %s never resolved", pg.ID())
	}
}

func TestGoalSelector_DragToTheRight(t *testing.T) {
	g, _, _ := newTestSelector(t, GoalConfig{})
	if err := g.InitScale(); err != nil {
		t.Fatalf("InitScale failed: %v", err)
	}

	g.StartSelection(geom.Position2D{X: 1, Y: 1})
	ind := g.Indicator()
	if !ind.Visible {
		t.Error("indicator should be visible while selecting")
	}
	if ind.X != 1 || ind.Y != -1 {
		t.Errorf("indicator at (%v, %v), want (1, -1)", ind.X, ind.Y)
	}
	if ind.ScaleX != 2 || ind.ScaleY != 2 {
		t.Errorf("indicator scale (%v, %v), want (2, 2)", ind.ScaleX, ind.ScaleY)
	}

	if err := g.UpdateSelection(geom.Position2D{X: 2, Y: 1}); err != nil {
		t.Fatalf("UpdateSelection failed: %v", err)
	}
	if !floatEquals(ind.Rotation, 0) {
		t.Errorf("rotation = %v, want 0", ind.Rotation)
	}

	pose, err := g.EndSelection()
	if err != nil {
		t.Fatalf("EndSelection failed: %v", err)
	}
	if pose.Position != (geom.Position2D{X: 1, Y: 1}) {
		t.Errorf("position = %v, want (1, 1)", pose.Position)
	}
	if !floatEquals(pose.Heading.Heading(), 0) {
		t.Errorf("heading = %v, want 0", pose.Heading.Heading())
	}
	if ind.Visible {
		t.Error("indicator should be hidden after EndSelection")
	}
	if g.Selecting() {
		t.Error("selection should be over")
	}
}

func TestGoalSelector_Orientation(t *testing.T) {
	anchor := geom.Position2D{X: 1, Y: 1}
	tests := []struct {
		name string
		to   geom.Position2D
		want float64
	}{
		{"right", geom.Position2D{X: 2, Y: 1}, 0},
		{"up", geom.Position2D{X: 1, Y: 2}, -90},
		{"down", geom.Position2D{X: 1, Y: 0}, 90},
		{"up right", geom.Position2D{X: 3, Y: 3}, -45},
		{"down left", geom.Position2D{X: 0, Y: 0}, 135},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _ := newTestSelector(t, GoalConfig{})
			g.StartSelection(anchor)
			if err := g.UpdateSelection(tt.to); err != nil {
				t.Fatalf("UpdateSelection failed: %v", err)
			}
			if got := g.Indicator().Rotation; !floatEquals(got, tt.want) {
				t.Errorf("rotation = %v, want %v", got, tt.want)
			}

			pose, err := g.EndSelection()
			if err != nil {
				t.Fatalf("EndSelection failed: %v", err)
			}
			if pose.Position != anchor {
				t.Errorf("position = %v, want %v", pose.Position, anchor)
			}
			want := -math.Atan2(tt.to.Y-anchor.Y, tt.to.X-anchor.X) * 180 / math.Pi
			if got := geom.HeadingDegrees(pose.Heading); !floatEquals(got, want) {
				t.Errorf("heading back to rotation = %v, want %v", got, want)
			}
			if pose.Heading.X != 0 || pose.Heading.Y != 0 {
				t.Errorf("heading is not planar: %+v", pose.Heading)
			}
		})
	}
}

func TestGoalSelector_WithoutStart(t *testing.T) {
	g, _, _ := newTestSelector(t, GoalConfig{})

	if err := g.UpdateSelection(geom.Position2D{X: 1}); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("UpdateSelection = %v, want ErrInvalidStateTransition", err)
	}
	pose, err := g.EndSelection()
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("EndSelection = %v, want ErrInvalidStateTransition", err)
	}
	if pose != (geom.Pose2D{}) {
		t.Errorf("EndSelection returned a pose: %v", pose)
	}

	// A completed selection cannot be ended twice
	g.StartSelection(geom.Position2D{})
	if _, err := g.EndSelection(); err != nil {
		t.Fatalf("EndSelection failed: %v", err)
	}
	if _, err := g.EndSelection(); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("second EndSelection = %v, want ErrInvalidStateTransition", err)
	}
}

func TestGoalSelector_CancelSelection(t *testing.T) {
	g, _, _ := newTestSelector(t, GoalConfig{})
	g.StartSelection(geom.Position2D{X: 4, Y: 2})
	g.CancelSelection()

	if g.Selecting() || g.Indicator().Visible {
		t.Error("cancel should hide the indicator and end the selection")
	}
	if _, err := g.EndSelection(); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("EndSelection after cancel = %v, want ErrInvalidStateTransition", err)
	}
}

func TestGoalSelector_IndicatorFollowsLiveZoom(t *testing.T) {
	g, _, view := newTestSelector(t, GoalConfig{})
	g.StartSelection(geom.Position2D{})

	view.zoom = scene.Scale{X: 4, Y: 4}
	if err := g.UpdateSelection(geom.Position2D{X: 1}); err != nil {
		t.Fatal(err)
	}
	if g.Indicator().ScaleX != 0.25 {
		t.Errorf("indicator scale = %v, want 0.25", g.Indicator().ScaleX)
	}
}

func TestGoalSelector_SendGoalPreconditions(t *testing.T) {
	t.Run("scale not initialized", func(t *testing.T) {
		g, actions, _ := newTestSelector(t, GoalConfig{})
		_, err := g.SendGoal(context.Background(), geom.Pose2D{Heading: geom.Identity})
		if !errors.Is(err, ErrScaleNotInitialized) {
			t.Errorf("SendGoal = %v, want ErrScaleNotInitialized", err)
		}
		if len(actions.goals) != 0 {
			t.Error("no goal should be sent")
		}
	})

	t.Run("no transport", func(t *testing.T) {
		deps, _ := testDeps()
		g, err := NewGoalSelector(GoalConfig{}, deps)
		if err != nil {
			t.Fatal(err)
		}
		g.InitScale()
		_, err = g.SendGoal(context.Background(), geom.Pose2D{Heading: geom.Identity})
		if !errors.Is(err, ErrTransportUnavailable) {
			t.Errorf("SendGoal = %v, want ErrTransportUnavailable", err)
		}
	})

	t.Run("transport refuses", func(t *testing.T) {
		g, actions, _ := newTestSelector(t, GoalConfig{})
		g.InitScale()
		actions.err = errors.New("not connected")
		_, err := g.SendGoal(context.Background(), geom.Pose2D{Heading: geom.Identity})
		if !errors.Is(err, ErrTransportUnavailable) {
			t.Errorf("SendGoal = %v, want ErrTransportUnavailable", err)
		}
		if g.Container().Len() != 1 {
			t.Error("a refused goal must not leave a marker")
		}
	})

	t.Run("non-planar heading", func(t *testing.T) {
		g, _, _ := newTestSelector(t, GoalConfig{})
		g.InitScale()
		_, err := g.SendGoal(context.Background(), geom.Pose2D{Heading: geom.Quaternion{X: 0.5, W: 0.5}})
		if !errors.Is(err, geom.ErrNonPlanar) {
			t.Errorf("SendGoal = %v, want ErrNonPlanar", err)
		}
	})
}

func TestGoalSelector_ResultRemovesMarker(t *testing.T) {
	g, actions, view := newTestSelector(t, GoalConfig{})
	if err := g.InitScale(); err != nil {
		t.Fatal(err)
	}
	// Markers use the init-time scale, not the live one
	view.zoom = scene.Scale{X: 10, Y: 10}

	pose := geom.Pose2D{Position: geom.Position2D{X: 3, Y: -2}, Heading: geom.QuaternionFromHeading(math.Pi / 2)}
	pg, err := g.SendGoal(context.Background(), pose)
	if err != nil {
		t.Fatalf("SendGoal failed: %v", err)
	}

	goal, ok := actions.goals[0].(rosmsg.MoveBaseGoal)
	if !ok {
		t.Fatalf("sent %T, want rosmsg.MoveBaseGoal", actions.goals[0])
	}
	if goal.TargetPose.Header.FrameID != "/map" {
		t.Errorf("frame = %q, want /map", goal.TargetPose.Header.FrameID)
	}
	if goal.TargetPose.Pose.Position.X != 3 || goal.TargetPose.Pose.Position.Y != -2 {
		t.Errorf("goal position = %+v", goal.TargetPose.Pose.Position)
	}

	children := g.Container().Children()
	if len(children) != 2 {
		t.Fatalf("container has %d children, want indicator and marker", len(children))
	}
	marker := children[1].(*scene.Arrow)
	if marker.X != 3 || marker.Y != 2 {
		t.Errorf("marker at (%v, %v), want (3, 2)", marker.X, marker.Y)
	}
	if !floatEquals(marker.Rotation, -90) {
		t.Errorf("marker rotation = %v, want -90", marker.Rotation)
	}
	if marker.ScaleX != 2 || marker.ScaleY != 2 {
		t.Errorf("marker scale = (%v, %v), want init-time (2, 2)", marker.ScaleX, marker.ScaleY)
	}
	if !marker.Pulse {
		t.Error("goal marker should pulse")
	}
	if len(g.Pending()) != 1 {
		t.Errorf("Pending() = %d goals, want 1", len(g.Pending()))
	}

	actions.handles[0].finish(rosmsg.StatusSucceeded)
	waitDone(t, pg)

	if pg.Err() != nil {
		t.Errorf("Err() = %v, want nil", pg.Err())
	}
	if pg.Status() != rosmsg.StatusSucceeded {
		t.Errorf("Status() = %v, want succeeded", pg.Status())
	}
	if g.Container().Contains(marker) {
		t.Error("marker should be removed after the result")
	}
	if len(g.Pending()) != 0 {
		t.Error("goal should no longer be pending")
	}
	if actions.handles[0].canceled.Load() {
		t.Error("a finished goal must not be cancelled")
	}
}

func TestGoalSelector_AbortedIsStillAResult(t *testing.T) {
	g, actions, _ := newTestSelector(t, GoalConfig{})
	g.InitScale()

	pg, err := g.SendGoal(context.Background(), geom.Pose2D{Heading: geom.Identity})
	if err != nil {
		t.Fatal(err)
	}
	actions.handles[0].finish(rosmsg.StatusAborted)
	waitDone(t, pg)

	if pg.Err() != nil {
		t.Errorf("Err() = %v, want nil", pg.Err())
	}
	if pg.Status() != rosmsg.StatusAborted {
		t.Errorf("Status() = %v, want aborted", pg.Status())
	}
}

func TestGoalSelector_Timeout(t *testing.T) {
	g, actions, _ := newTestSelector(t, GoalConfig{Timeout: 20 * time.Millisecond})
	g.InitScale()

	pg, err := g.SendGoal(context.Background(), geom.Pose2D{Heading: geom.Identity})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, pg)

	if !errors.Is(pg.Err(), ErrRequestTimeout) {
		t.Errorf("Err() = %v, want ErrRequestTimeout", pg.Err())
	}
	if !actions.handles[0].canceled.Load() {
		t.Error("timed out goal should be cancelled on the server")
	}
	if g.Container().Len() != 1 {
		t.Errorf("container has %d children, want only the indicator", g.Container().Len())
	}
}

func TestGoalSelector_Cancel(t *testing.T) {
	g, actions, _ := newTestSelector(t, GoalConfig{})
	g.InitScale()

	pg, err := g.SendGoal(context.Background(), geom.Pose2D{Heading: geom.Identity})
	if err != nil {
		t.Fatal(err)
	}
	pg.Cancel()
	waitDone(t, pg)

	if !errors.Is(pg.Err(), ErrGoalCanceled) {
		t.Errorf("Err() = %v, want ErrGoalCanceled", pg.Err())
	}
	if !actions.handles[0].canceled.Load() {
		t.Error("goal should be cancelled on the server")
	}
	if g.Container().Len() != 1 {
		t.Error("marker should be removed after cancel")
	}

	// Cancelling a resolved goal is harmless
	pg.Cancel()
}

func TestGoalSelector_DispatchesCleanup(t *testing.T) {
	deps, _ := testDeps()
	actions := &mockActions{}
	deps.Actions = actions
	queue := make(chan func(), 1)
	deps.Dispatch = func(f func()) { queue <- f }

	g, err := NewGoalSelector(GoalConfig{}, deps)
	if err != nil {
		t.Fatal(err)
	}
	g.InitScale()
	pg, err := g.SendGoal(context.Background(), geom.Pose2D{Heading: geom.Identity})
	if err != nil {
		t.Fatal(err)
	}
	actions.handles[0].finish(rosmsg.StatusSucceeded)

	var cleanup func()
	select {
	case cleanup = <-queue:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup was not dispatched")
	}

	select {
	case <-pg.Done():
		t.Fatal("goal resolved before the cleanup ran")
	default:
	}
	if g.Container().Len() != 2 {
		t.Error("marker removed outside the dispatcher")
	}

	cleanup()
	waitDone(t, pg)
	if g.Container().Len() != 1 {
		t.Error("marker should be removed by the dispatched cleanup")
	}
}

func TestGoalSelector_InitScaleTwice(t *testing.T) {
	g, _, view := newTestSelector(t, GoalConfig{})
	if err := g.InitScale(); err != nil {
		t.Fatal(err)
	}
	view.zoom = scene.Scale{X: 1, Y: 1}
	if err := g.InitScale(); !errors.Is(err, ErrScaleAlreadyInitialized) {
		t.Errorf("second InitScale = %v, want ErrScaleAlreadyInitialized", err)
	}

	g.ResetScale()
	if err := g.InitScale(); err != nil {
		t.Errorf("InitScale after reset = %v", err)
	}
	if f, _ := g.scale.Factor(); f.X != 1 {
		t.Errorf("factor after reinit = %v, want 1", f.X)
	}
}

func TestNewGoalSelector_RequiresView(t *testing.T) {
	if _, err := NewGoalSelector(GoalConfig{}, Deps{}); !errors.Is(err, ErrMissingView) {
		t.Errorf("NewGoalSelector = %v, want ErrMissingView", err)
	}
}
