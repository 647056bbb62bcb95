package nav2d

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-nav2d/pkg/geom"
	"github.com/teslashibe/go-nav2d/pkg/rosbridge"
	"github.com/teslashibe/go-nav2d/pkg/rosmsg"
	"github.com/teslashibe/go-nav2d/pkg/scene"
	"github.com/teslashibe/go-nav2d/pkg/trace"
)

// PoseTracker draws the robot marker and its breadcrumb trace.
type PoseTracker struct {
	cfg    PoseConfig
	view   scene.View
	logger *slog.Logger

	marker *scene.Arrow
	trace  *scene.TraceShape
	scale  ScaleLifecycle
	sub    rosbridge.Subscription
	last   *geom.Pose2D
}

// NewPoseTracker attaches a hidden trace and robot marker to deps.Root and,
// when deps.Feed is set, subscribes to cfg.Topic.
func NewPoseTracker(cfg PoseConfig, deps Deps) (*PoseTracker, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	t := &PoseTracker{
		cfg:    cfg,
		view:   deps.View,
		logger: deps.logger().With("component", "pose", "topic", cfg.Topic),
	}

	buf := trace.NewWithSpacing(*cfg.MaxTraceLength, cfg.TraceMinSpacing)
	t.trace = scene.NewTraceShape(cfg.TraceSize, *cfg.TraceColor, buf)
	t.trace.Visible = false
	deps.Root.Add(t.trace)

	t.marker = cfg.RobotMarker
	if t.marker == nil {
		t.marker = scene.NewArrow(scene.ArrowOptions{
			Size:        cfg.RobotSize,
			StrokeSize:  1,
			StrokeColor: *cfg.RobotColor,
			FillColor:   *cfg.RobotColor,
			Pulse:       true,
		})
	}
	t.marker.Visible = false
	deps.Root.Add(t.marker)

	if deps.Feed != nil {
		sub, err := deps.Feed.Subscribe(cfg.Topic, rosmsg.TypePose, cfg.Throttle, t.handleMessage)
		if err != nil {
			deps.Root.Remove(t.trace)
			deps.Root.Remove(t.marker)
			return nil, fmt.Errorf("%w: subscribe %s: %w", ErrTransportUnavailable, cfg.Topic, err)
		}
		t.sub = sub
	}
	return t, nil
}

func (t *PoseTracker) handleMessage(raw json.RawMessage) {
	var msg rosmsg.Pose
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.logger.Warn("dropping malformed pose", "error", err)
		return
	}
	if err := t.UpdatePose(msg.Pose2D()); err != nil && !errors.Is(err, ErrScaleNotInitialized) {
		t.logger.Warn("pose rejected", "error", err)
	}
}

// Config returns the effective configuration.
func (t *PoseTracker) Config() PoseConfig { return t.cfg }

// Marker returns the robot marker.
func (t *PoseTracker) Marker() *scene.Arrow { return t.marker }

// Trace returns the trace shape.
func (t *PoseTracker) Trace() *scene.TraceShape { return t.trace }

// Last returns the most recent accepted pose.
func (t *PoseTracker) Last() (geom.Pose2D, bool) {
	if t.last == nil {
		return geom.Pose2D{}, false
	}
	return *t.last, true
}

// InitScale captures the current inverse zoom for the marker and trace.
func (t *PoseTracker) InitScale() error {
	f, err := t.scale.Init(t.view)
	if errors.Is(err, ErrScaleAlreadyInitialized) {
		t.logger.Warn("scale has already been initialized")
		return err
	}
	if err != nil {
		return err
	}
	t.marker.SetScale(f)
	t.trace.SetScale(f)
	return nil
}

// ResetScale hides the marker and trace until the next InitScale. The
// recorded trace is kept.
func (t *PoseTracker) ResetScale() {
	t.scale.Reset()
	t.marker.Visible = false
	t.trace.Visible = false
}

// ClearTrace drops every recorded pose.
func (t *PoseTracker) ClearTrace() {
	t.trace.Buffer.Clear()
}

// UpdatePose moves the robot marker to pose and records it in the trace.
// The marker always moves but is only shown, and the trace only grows, once
// the scale is initialized; before that ErrScaleNotInitialized is returned.
// A non-planar heading is rejected without any change.
func (t *PoseTracker) UpdatePose(pose geom.Pose2D) error {
	if err := pose.Heading.Validate(); err != nil {
		return err
	}

	sp := geom.ToScreen(pose.Position)
	t.marker.X = sp.X
	t.marker.Y = sp.Y
	t.marker.Rotation = t.view.HeadingToRotation(pose.Heading)
	t.last = &pose

	if !t.scale.Initialized() {
		return ErrScaleNotInitialized
	}
	t.marker.Visible = true

	if t.cfg.TraceEnabled() {
		t.trace.AddPose(pose)
		t.trace.Visible = true
	}
	return nil
}

// Close unsubscribes from the feed.
func (t *PoseTracker) Close() error {
	if t.sub == nil {
		return nil
	}
	err := t.sub.Unsubscribe()
	t.sub = nil
	return err
}
