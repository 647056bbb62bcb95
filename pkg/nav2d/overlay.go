// Package nav2d implements the navigation overlay: goal selection and
// sending, the planned path and the robot pose with its trace.
//
// Components are not safe for concurrent use. Call them from the goroutine
// that owns the scene, and route feed callbacks there with a dispatcher
// (see rosbridge.WithDispatcher and Deps.Dispatch).
package nav2d

import "errors"

// Config groups the component configurations.
type Config struct {
	Goal GoalConfig `yaml:"goal" json:"goal"`
	Path PathConfig `yaml:"path" json:"path"`
	Pose PoseConfig `yaml:"pose" json:"pose"`
}

// Overlay bundles the three components over one root.
type Overlay struct {
	Goal *GoalSelector
	Path *PathDisplay
	Pose *PoseTracker
}

// NewOverlay builds every component. The path sits below the trace and
// robot marker, goals on top.
func NewOverlay(cfg Config, deps Deps) (*Overlay, error) {
	path, err := NewPathDisplay(cfg.Path, deps)
	if err != nil {
		return nil, err
	}
	pose, err := NewPoseTracker(cfg.Pose, deps)
	if err != nil {
		path.Close()
		return nil, err
	}
	goal, err := NewGoalSelector(cfg.Goal, deps)
	if err != nil {
		path.Close()
		pose.Close()
		return nil, err
	}
	return &Overlay{Goal: goal, Path: path, Pose: pose}, nil
}

// InitScale initializes every component. Already-initialized components are
// reported with ErrScaleAlreadyInitialized.
func (o *Overlay) InitScale() error {
	return errors.Join(o.Path.InitScale(), o.Pose.InitScale(), o.Goal.InitScale())
}

// ResetScale resets every component.
func (o *Overlay) ResetScale() {
	o.Path.ResetScale()
	o.Pose.ResetScale()
	o.Goal.ResetScale()
}

// Initialized reports whether every component has a captured scale.
func (o *Overlay) Initialized() bool {
	return o.Path.scale.Initialized() && o.Pose.scale.Initialized() && o.Goal.scale.Initialized()
}

// Close cancels outstanding goals and unsubscribes the feeds.
func (o *Overlay) Close() error {
	o.Goal.CancelAll()
	return errors.Join(o.Path.Close(), o.Pose.Close())
}
