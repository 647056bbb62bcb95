package nav2d

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-nav2d/pkg/rosbridge"
	"github.com/teslashibe/go-nav2d/pkg/scene"
)

// Feed subscribes to inbound topics. *rosbridge.Client implements it.
type Feed interface {
	Subscribe(topic, msgType string, throttle time.Duration, handler rosbridge.Handler) (rosbridge.Subscription, error)
}

// ActionSender issues navigation goals. *rosbridge.ActionClient implements it.
type ActionSender interface {
	SendGoal(goal any) (rosbridge.GoalHandle, error)
}

// Deps are the collaborators shared by the overlay components.
type Deps struct {
	// Root is the container the component attaches its nodes to.
	Root *scene.Container

	// View supplies the zoom and the heading-to-rotation convention.
	View scene.View

	// Feed is optional. Without it the component is driven by direct calls.
	Feed Feed

	// Actions is required only for sending goals.
	Actions ActionSender

	// Dispatch runs f on the goroutine that owns the scene. Nil runs f
	// inline, for callers that already serialize access.
	Dispatch func(f func())

	Logger *slog.Logger
}

func (d Deps) validate() error {
	if d.Root == nil || d.View == nil {
		return ErrMissingView
	}
	return nil
}

func (d Deps) dispatcher() func(func()) {
	if d.Dispatch != nil {
		return d.Dispatch
	}
	return func(f func()) { f() }
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
