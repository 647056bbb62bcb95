// Package rosmsg defines the ROS message shapes exchanged with rosbridge
// by the navigation overlay.
package rosmsg

import (
	"encoding/json"
	"time"

	"github.com/teslashibe/go-nav2d/pkg/geom"
)

// Message type names.
const (
	TypePose            = "geometry_msgs/Pose"
	TypePoseStamped     = "geometry_msgs/PoseStamped"
	TypePath            = "nav_msgs/Path"
	TypeGoalID          = "actionlib_msgs/GoalID"
	TypeGoalStatusArray = "actionlib_msgs/GoalStatusArray"
)

// Time is a ROS1 timestamp.
type Time struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// FromTime converts a time.Time. The zero time maps to the zero stamp.
func FromTime(t time.Time) Time {
	if t.IsZero() {
		return Time{}
	}
	return Time{Secs: t.Unix(), Nsecs: int64(t.Nanosecond())}
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Point is geometry_msgs/Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Point           `json:"position"`
	Orientation geom.Quaternion `json:"orientation"`
}

// Pose2D drops the vertical axis.
func (p Pose) Pose2D() geom.Pose2D {
	return geom.Pose2D{
		Position: geom.Position2D{X: p.Position.X, Y: p.Position.Y},
		Heading:  p.Orientation,
	}
}

// FromPose2D lifts a planar pose onto the ground plane.
func FromPose2D(p geom.Pose2D) Pose {
	return Pose{
		Position:    Point{X: p.Position.X, Y: p.Position.Y},
		Orientation: p.Heading,
	}
}

// PoseStamped is geometry_msgs/PoseStamped.
type PoseStamped struct {
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

// Path is nav_msgs/Path.
type Path struct {
	Header Header        `json:"header"`
	Poses  []PoseStamped `json:"poses"`
}

// Poses2D returns the waypoints as planar poses.
func (p Path) Poses2D() []geom.Pose2D {
	out := make([]geom.Pose2D, len(p.Poses))
	for i, ps := range p.Poses {
		out[i] = ps.Pose.Pose2D()
	}
	return out
}

// MoveBaseGoal is move_base_msgs/MoveBaseGoal.
type MoveBaseGoal struct {
	TargetPose PoseStamped `json:"target_pose"`
}

// GoalID is actionlib_msgs/GoalID.
type GoalID struct {
	Stamp Time   `json:"stamp"`
	ID    string `json:"id"`
}

// GoalStatusCode is the actionlib goal state.
type GoalStatusCode uint8

// actionlib_msgs/GoalStatus values.
const (
	StatusPending GoalStatusCode = iota
	StatusActive
	StatusPreempted
	StatusSucceeded
	StatusAborted
	StatusRejected
	StatusPreempting
	StatusRecalling
	StatusRecalled
	StatusLost
)

var statusNames = map[GoalStatusCode]string{
	StatusPending:    "pending",
	StatusActive:     "active",
	StatusPreempted:  "preempted",
	StatusSucceeded:  "succeeded",
	StatusAborted:    "aborted",
	StatusRejected:   "rejected",
	StatusPreempting: "preempting",
	StatusRecalling:  "recalling",
	StatusRecalled:   "recalled",
	StatusLost:       "lost",
}

func (c GoalStatusCode) String() string {
	if name, ok := statusNames[c]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (c GoalStatusCode) Terminal() bool {
	switch c {
	case StatusPreempted, StatusSucceeded, StatusAborted, StatusRejected, StatusRecalled, StatusLost:
		return true
	}
	return false
}

// GoalStatus is actionlib_msgs/GoalStatus.
type GoalStatus struct {
	GoalID GoalID         `json:"goal_id"`
	Status GoalStatusCode `json:"status"`
	Text   string         `json:"text"`
}

// GoalStatusArray is actionlib_msgs/GoalStatusArray.
type GoalStatusArray struct {
	Header     Header       `json:"header"`
	StatusList []GoalStatus `json:"status_list"`
}

// ActionGoal wraps a goal for the <server>/goal topic.
type ActionGoal struct {
	Header Header `json:"header"`
	GoalID GoalID `json:"goal_id"`
	Goal   any    `json:"goal"`
}

// ActionResult is received on <server>/result.
type ActionResult struct {
	Header Header          `json:"header"`
	Status GoalStatus      `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ActionFeedback is received on <server>/feedback.
type ActionFeedback struct {
	Header   Header          `json:"header"`
	Status   GoalStatus      `json:"status"`
	Feedback json.RawMessage `json:"feedback,omitempty"`
}
