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
)

// PathDisplay draws the planner's path.
type PathDisplay struct {
	cfg    PathConfig
	view   scene.View
	logger *slog.Logger

	shape *scene.PathShape
	scale ScaleLifecycle
	sub   rosbridge.Subscription
}

// NewPathDisplay attaches a hidden path to deps.Root and, when deps.Feed is
// set, subscribes to cfg.Topic.
func NewPathDisplay(cfg PathConfig, deps Deps) (*PathDisplay, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p := &PathDisplay{
		cfg:    cfg,
		view:   deps.View,
		logger: deps.logger().With("component", "path", "topic", cfg.Topic),
		shape:  scene.NewPathShape(cfg.Size, *cfg.Color),
	}
	p.shape.Visible = false
	deps.Root.Add(p.shape)

	if deps.Feed != nil {
		sub, err := deps.Feed.Subscribe(cfg.Topic, rosmsg.TypePath, cfg.Throttle, p.handleMessage)
		if err != nil {
			deps.Root.Remove(p.shape)
			return nil, fmt.Errorf("%w: subscribe %s: %w", ErrTransportUnavailable, cfg.Topic, err)
		}
		p.sub = sub
	}
	return p, nil
}

func (p *PathDisplay) handleMessage(raw json.RawMessage) {
	var msg rosmsg.Path
	if err := json.Unmarshal(raw, &msg); err != nil {
		p.logger.Warn("dropping malformed path", "error", err)
		return
	}
	if err := p.UpdatePath(msg.Poses2D()); err != nil && !errors.Is(err, ErrScaleNotInitialized) {
		p.logger.Warn("path update failed", "error", err)
	}
}

// Config returns the effective configuration.
func (p *PathDisplay) Config() PathConfig { return p.cfg }

// Shape returns the drawn path.
func (p *PathDisplay) Shape() *scene.PathShape { return p.shape }

// InitScale captures the current inverse zoom. The path shows from the next
// update on.
func (p *PathDisplay) InitScale() error {
	f, err := p.scale.Init(p.view)
	if errors.Is(err, ErrScaleAlreadyInitialized) {
		p.logger.Warn("scale has already been initialized")
		return err
	}
	if err != nil {
		return err
	}
	p.shape.SetScale(f)
	return nil
}

// ResetScale hides the path until the next InitScale.
func (p *PathDisplay) ResetScale() {
	p.scale.Reset()
	p.shape.Visible = false
}

// UpdatePath replaces the drawn path with poses. Before InitScale the
// geometry is stored, the path stays hidden and ErrScaleNotInitialized is
// returned.
func (p *PathDisplay) UpdatePath(poses []geom.Pose2D) error {
	points := make([]geom.Position2D, len(poses))
	for i, pose := range poses {
		points[i] = geom.ToScreen(pose.Position)
	}
	p.shape.SetPath(points)

	if !p.scale.Initialized() {
		return ErrScaleNotInitialized
	}
	p.shape.Visible = true
	return nil
}

// Close unsubscribes from the feed. The shape stays attached to the root.
func (p *PathDisplay) Close() error {
	if p.sub == nil {
		return nil
	}
	err := p.sub.Unsubscribe()
	p.sub = nil
	return err
}
