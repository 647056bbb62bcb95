package nav2d

import (
	"time"

	"github.com/teslashibe/go-nav2d/pkg/scene"
)

// DefaultThrottle is the minimum interval between feed messages.
const DefaultThrottle = 100 * time.Millisecond

// Bool returns a pointer to v, for presence-aware config fields.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v, for presence-aware config fields.
func Int(v int) *int { return &v }

// ColorPtr returns a pointer to c, for presence-aware config fields.
func ColorPtr(c scene.Color) *scene.Color { return &c }

// GoalConfig configures a GoalSelector. Zero fields take defaults.
type GoalConfig struct {
	// ActionServer is the navigation action server, like "/move_base".
	ActionServer string `yaml:"action_server" json:"action_server"`

	// ActionType is the action message type, like "move_base_msgs/MoveBaseAction".
	ActionType string `yaml:"action_type" json:"action_type"`

	// MapFrame is stamped on every goal, like "/map".
	MapFrame string `yaml:"map_frame" json:"map_frame"`

	// Timeout bounds how long a goal may stay unresolved before it is
	// cancelled and its marker removed.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	IndicatorSize  float64      `yaml:"indicator_size" json:"indicator_size"`
	IndicatorColor *scene.Color `yaml:"indicator_color" json:"indicator_color"`
	MarkerSize     float64      `yaml:"marker_size" json:"marker_size"`
	MarkerColor    *scene.Color `yaml:"marker_color" json:"marker_color"`
}

// DefaultGoalConfig returns the defaults applied by NewGoalSelector.
func DefaultGoalConfig() GoalConfig {
	return GoalConfig{
		ActionServer:   "/move_base",
		ActionType:     "move_base_msgs/MoveBaseAction",
		MapFrame:       "/map",
		Timeout:        5 * time.Minute,
		IndicatorSize:  30,
		IndicatorColor: ColorPtr(scene.RGB(0, 255, 0, 0.66)),
		MarkerSize:     10,
		MarkerColor:    ColorPtr(scene.RGB(255, 64, 128, 0.66)),
	}
}

func (c GoalConfig) withDefaults() GoalConfig {
	d := DefaultGoalConfig()
	if c.ActionServer == "" {
		c.ActionServer = d.ActionServer
	}
	if c.ActionType == "" {
		c.ActionType = d.ActionType
	}
	if c.MapFrame == "" {
		c.MapFrame = d.MapFrame
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.IndicatorSize <= 0 {
		c.IndicatorSize = d.IndicatorSize
	}
	if c.IndicatorColor == nil {
		c.IndicatorColor = d.IndicatorColor
	}
	if c.MarkerSize <= 0 {
		c.MarkerSize = d.MarkerSize
	}
	if c.MarkerColor == nil {
		c.MarkerColor = d.MarkerColor
	}
	return c
}

// PathConfig configures a PathDisplay.
type PathConfig struct {
	// Topic carries nav_msgs/Path, like "/plan".
	Topic string `yaml:"topic" json:"topic"`

	// Throttle is the feed's minimum message interval. Negative disables
	// throttling, zero means DefaultThrottle.
	Throttle time.Duration `yaml:"throttle" json:"throttle"`

	Color *scene.Color `yaml:"color" json:"color"`
	Size  float64      `yaml:"size" json:"size"`
}

// DefaultPathConfig returns the defaults applied by NewPathDisplay.
func DefaultPathConfig() PathConfig {
	return PathConfig{
		Topic:    "/plan",
		Throttle: DefaultThrottle,
		Color:    ColorPtr(scene.RGB(0, 255, 0, 1)),
		Size:     1,
	}
}

func (c PathConfig) withDefaults() PathConfig {
	d := DefaultPathConfig()
	if c.Topic == "" {
		c.Topic = d.Topic
	}
	c.Throttle = throttleOrDefault(c.Throttle)
	if c.Color == nil {
		c.Color = d.Color
	}
	if c.Size <= 0 {
		c.Size = d.Size
	}
	return c
}

// PoseConfig configures a PoseTracker.
//
// WithTrace and MaxTraceLength are pointers so an explicit false or 0 is
// distinguishable from "not set".
type PoseConfig struct {
	// Topic carries geometry_msgs/Pose, like "/robot_pose".
	Topic string `yaml:"topic" json:"topic"`

	// Throttle is the feed's minimum message interval. Negative disables
	// throttling, zero means DefaultThrottle.
	Throttle time.Duration `yaml:"throttle" json:"throttle"`

	// WithTrace enables the breadcrumb trace. Default true.
	WithTrace *bool `yaml:"with_trace" json:"with_trace"`

	// MaxTraceLength caps the trace. Default 100, explicit 0 is unbounded.
	MaxTraceLength *int `yaml:"max_trace_length" json:"max_trace_length"`

	// TraceMinSpacing drops poses closer than this many meters to the last one.
	TraceMinSpacing float64 `yaml:"trace_min_spacing" json:"trace_min_spacing"`

	TraceColor *scene.Color `yaml:"trace_color" json:"trace_color"`
	TraceSize  float64      `yaml:"trace_size" json:"trace_size"`
	RobotColor *scene.Color `yaml:"robot_color" json:"robot_color"`
	RobotSize  float64      `yaml:"robot_size" json:"robot_size"`

	// RobotMarker replaces the default arrow. Its front must point along +x.
	RobotMarker *scene.Arrow `yaml:"-" json:"-"`
}

// DefaultPoseConfig returns the defaults applied by NewPoseTracker.
func DefaultPoseConfig() PoseConfig {
	return PoseConfig{
		Topic:          "/robot_pose",
		Throttle:       DefaultThrottle,
		WithTrace:      Bool(true),
		MaxTraceLength: Int(100),
		TraceColor:     ColorPtr(scene.RGB(0, 150, 0, 0.66)),
		TraceSize:      1.5,
		RobotColor:     ColorPtr(scene.RGB(255, 0, 0, 0.66)),
		RobotSize:      15,
	}
}

func (c PoseConfig) withDefaults() PoseConfig {
	d := DefaultPoseConfig()
	if c.Topic == "" {
		c.Topic = d.Topic
	}
	c.Throttle = throttleOrDefault(c.Throttle)
	if c.WithTrace == nil {
		c.WithTrace = d.WithTrace
	}
	if c.MaxTraceLength == nil {
		c.MaxTraceLength = d.MaxTraceLength
	}
	if c.TraceColor == nil {
		c.TraceColor = d.TraceColor
	}
	if c.TraceSize <= 0 {
		c.TraceSize = d.TraceSize
	}
	if c.RobotColor == nil {
		c.RobotColor = d.RobotColor
	}
	if c.RobotSize <= 0 {
		c.RobotSize = d.RobotSize
	}
	return c
}

// TraceEnabled reports the effective trace flag.
func (c PoseConfig) TraceEnabled() bool {
	return c.WithTrace == nil || *c.WithTrace
}

func throttleOrDefault(d time.Duration) time.Duration {
	switch {
	case d < 0:
		return 0
	case d == 0:
		return DefaultThrottle
	}
	return d
}
