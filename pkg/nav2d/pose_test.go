package nav2d

import (
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/go-nav2d/pkg/geom"
	"github.com/teslashibe/go-nav2d/pkg/rosmsg"
	"github.com/teslashibe/go-nav2d/pkg/scene"
)

func pose(x, y, theta float64) geom.Pose2D {
	return geom.Pose2D{
		Position: geom.Position2D{X: x, Y: y},
		Heading:  geom.QuaternionFromHeading(theta),
	}
}

func newTestTracker(t *testing.T, cfg PoseConfig) *PoseTracker {
	t.Helper()
	deps, _ := testDeps()
	tr, err := NewPoseTracker(cfg, deps)
	if err != nil {
		t.Fatalf("NewPoseTracker failed: %v", err)
	}
	return tr
}

func TestPoseTracker_BeforeInitScale(t *testing.T) {
	tr := newTestTracker(t, PoseConfig{})

	err := tr.UpdatePose(pose(2, 3, math.Pi))
	if !errors.Is(err, ErrScaleNotInitialized) {
		t.Errorf("UpdatePose = %v, want ErrScaleNotInitialized", err)
	}

	m := tr.Marker()
	if m.X != 2 || m.Y != -3 {
		t.Errorf("marker at (%v, %v), want (2, -3)", m.X, m.Y)
	}
	if !floatEquals(math.Abs(m.Rotation), 180) {
		t.Errorf("marker rotation = %v, want ±180", m.Rotation)
	}
	if m.Visible {
		t.Error("marker should stay hidden before InitScale")
	}
	if tr.Trace().Buffer.Len() != 0 || tr.Trace().Visible {
		t.Error("trace should not grow before InitScale")
	}
}

func TestPoseTracker_TraceEnabled(t *testing.T) {
	tr := newTestTracker(t, PoseConfig{})
	if err := tr.InitScale(); err != nil {
		t.Fatal(err)
	}
	if tr.Marker().ScaleX != 2 || tr.Trace().ScaleX != 2 {
		t.Errorf("scales = %v / %v, want 2", tr.Marker().ScaleX, tr.Trace().ScaleX)
	}

	for i := 0; i < 5; i++ {
		if err := tr.UpdatePose(pose(float64(i), 0, 0)); err != nil {
			t.Fatalf("UpdatePose(%d) = %v", i, err)
		}
	}
	if !tr.Marker().Visible || !tr.Trace().Visible {
		t.Error("marker and trace should be visible")
	}
	if tr.Trace().Buffer.Len() != 5 {
		t.Errorf("trace length = %d, want 5", tr.Trace().Buffer.Len())
	}
	if tr.Marker().X != 4 {
		t.Errorf("marker x = %v, want 4", tr.Marker().X)
	}
}

func TestPoseTracker_TraceDisabled(t *testing.T) {
	tr := newTestTracker(t, PoseConfig{WithTrace: Bool(false)})
	tr.InitScale()

	for i := 1; i <= 10; i++ {
		if err := tr.UpdatePose(pose(float64(i), float64(-i), 0)); err != nil {
			t.Fatalf("UpdatePose(%d) = %v", i, err)
		}
		if tr.Marker().X != float64(i) || tr.Marker().Y != float64(i) {
			t.Errorf("update %d: marker at (%v, %v)", i, tr.Marker().X, tr.Marker().Y)
		}
	}
	if tr.Trace().Buffer.Len() != 0 {
		t.Errorf("trace length = %d, want 0", tr.Trace().Buffer.Len())
	}
	if tr.Trace().Visible {
		t.Error("disabled trace should stay hidden")
	}
}

func TestPoseTracker_TraceCap(t *testing.T) {
	tests := []struct {
		name    string
		max     *int
		updates int
		want    int
	}{
		{"default cap", nil, 150, 100},
		{"explicit cap", Int(3), 5, 3},
		{"below cap", Int(10), 4, 4},
		{"unbounded", Int(0), 250, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(t, PoseConfig{MaxTraceLength: tt.max})
			tr.InitScale()
			for i := 0; i < tt.updates; i++ {
				tr.UpdatePose(pose(float64(i), 0, 0))
			}

			got := tr.Trace().Buffer.Poses()
			if len(got) != tt.want {
				t.Fatalf("trace length = %d, want %d", len(got), tt.want)
			}
			// The newest poses survive, in order
			first := tt.updates - tt.want
			for i, p := range got {
				if p.Position.X != float64(first+i) {
					t.Fatalf("trace[%d].x = %v, want %v", i, p.Position.X, first+i)
				}
			}
		})
	}
}

func TestPoseTracker_TraceSpacing(t *testing.T) {
	tr := newTestTracker(t, PoseConfig{TraceMinSpacing: 0.5})
	tr.InitScale()

	tr.UpdatePose(pose(0, 0, 0))
	tr.UpdatePose(pose(0.1, 0, 0))
	tr.UpdatePose(pose(0.6, 0, 0))

	if n := tr.Trace().Buffer.Len(); n != 2 {
		t.Errorf("trace length = %d, want 2", n)
	}
	if tr.Marker().X != 0.6 {
		t.Error("marker should move even when the trace skips a pose")
	}
}

func TestPoseTracker_RejectsNonPlanar(t *testing.T) {
	tr := newTestTracker(t, PoseConfig{})
	tr.InitScale()
	tr.UpdatePose(pose(1, 1, 0))

	bad := geom.Pose2D{Position: geom.Position2D{X: 5, Y: 5}, Heading: geom.Quaternion{Y: 0.7, W: 0.7}}
	if err := tr.UpdatePose(bad); !errors.Is(err, geom.ErrNonPlanar) {
		t.Errorf("UpdatePose = %v, want ErrNonPlanar", err)
	}
	if tr.Marker().X != 1 {
		t.Error("rejected pose moved the marker")
	}
	if tr.Trace().Buffer.Len() != 1 {
		t.Error("rejected pose reached the trace")
	}
	if last, _ := tr.Last(); last.Position.X != 1 {
		t.Errorf("Last() = %v", last)
	}
}

func TestPoseTracker_CustomMarker(t *testing.T) {
	custom := scene.NewArrow(scene.ArrowOptions{Size: 50})
	tr := newTestTracker(t, PoseConfig{RobotMarker: custom})
	if tr.Marker() != custom {
		t.Fatal("custom marker not used")
	}
	if custom.Visible {
		t.Error("custom marker should start hidden")
	}
}

func TestPoseTracker_Feed(t *testing.T) {
	deps, _ := testDeps()
	feed := newMockFeed()
	deps.Feed = feed

	tr, err := NewPoseTracker(PoseConfig{Throttle: -1}, deps)
	if err != nil {
		t.Fatal(err)
	}
	sub := feed.sub("/robot_pose")
	if sub == nil || sub.msgType != rosmsg.TypePose {
		t.Fatalf("subscription = %+v", sub)
	}
	if sub.throttle != 0 {
		t.Errorf("throttle = %v, want 0 for a negative setting", sub.throttle)
	}

	tr.InitScale()
	feed.deliver("/robot_pose", rosmsg.Pose{
		Position:    rosmsg.Point{X: 4, Y: 1},
		Orientation: geom.QuaternionFromHeading(math.Pi / 2),
	})
	if tr.Marker().X != 4 || tr.Marker().Y != -1 {
		t.Errorf("marker at (%v, %v), want (4, -1)", tr.Marker().X, tr.Marker().Y)
	}
	if !floatEquals(tr.Marker().Rotation, -90) {
		t.Errorf("rotation = %v, want -90", tr.Marker().Rotation)
	}

	// Non-planar and malformed messages are dropped
	feed.deliver("/robot_pose", rosmsg.Pose{Orientation: geom.Quaternion{X: 1}})
	sub.handler([]byte(`not json`))
	if tr.Trace().Buffer.Len() != 1 {
		t.Errorf("trace length = %d, want 1", tr.Trace().Buffer.Len())
	}
}

func TestPoseTracker_ResetKeepsTrace(t *testing.T) {
	tr := newTestTracker(t, PoseConfig{})
	tr.InitScale()
	tr.UpdatePose(pose(1, 0, 0))
	tr.UpdatePose(pose(2, 0, 0))

	tr.ResetScale()
	if tr.Marker().Visible || tr.Trace().Visible {
		t.Error("reset should hide marker and trace")
	}
	if tr.Trace().Buffer.Len() != 2 {
		t.Error("reset should keep the recorded trace")
	}

	tr.ClearTrace()
	if tr.Trace().Buffer.Len() != 0 {
		t.Error("ClearTrace should empty the trace")
	}
}
