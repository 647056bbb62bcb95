package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-nav2d/pkg/geom"
	"github.com/teslashibe/go-nav2d/pkg/gesture"
	"github.com/teslashibe/go-nav2d/pkg/hub"
	"github.com/teslashibe/go-nav2d/pkg/loop"
	"github.com/teslashibe/go-nav2d/pkg/nav2d"
	"github.com/teslashibe/go-nav2d/pkg/rosbridge"
	"github.com/teslashibe/go-nav2d/pkg/scene"
)

// errorStatus maps overlay errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, nav2d.ErrInvalidStateTransition),
		errors.Is(err, nav2d.ErrScaleAlreadyInitialized):
		return fiber.StatusConflict
	case errors.Is(err, nav2d.ErrScaleNotInitialized):
		return fiber.StatusPreconditionFailed
	case errors.Is(err, nav2d.ErrTransportUnavailable),
		errors.Is(err, loop.ErrStopped):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, geom.ErrNonPlanar),
		errors.Is(err, scene.ErrInvalidZoom):
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// do runs f on the loop for the duration of the request
func (s *Server) do(c *fiber.Ctx, f func() error) error {
	return s.loop.Do(c.UserContext(), f)
}

// Status is the server state reported by GET /api/status
type Status struct {
	BridgeConnected bool                   `json:"bridge_connected"`
	Bridge          *rosbridge.ClientStats `json:"bridge,omitempty"`
	ScaleReady      bool                   `json:"scale_initialized"`
	Selecting       bool                   `json:"selecting"`
	PendingGoals    int                    `json:"pending_goals"`
	View            View                   `json:"view"`
	Robot           *geom.Pose2D           `json:"robot,omitempty"`
	TraceLength     int                    `json:"trace_length"`
	Loop            loop.Stats             `json:"loop"`
	Scene           hub.Stats              `json:"scene"`
	Gestures        gesture.Stats          `json:"gestures"`
}

// View describes the rendered viewport
type View struct {
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Zoom   scene.Scale     `json:"zoom"`
	Origin geom.Position2D `json:"origin"`
}

// handleStatus returns the overlay state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	var st Status
	err := s.do(c, func() error {
		st.ScaleReady = s.overlay.Initialized()
		st.Selecting = s.overlay.Goal.Selecting()
		st.PendingGoals = len(s.overlay.Goal.Pending())
		st.View = View{
			Width:  s.surface.Width,
			Height: s.surface.Height,
			Zoom:   s.surface.Zoom,
			Origin: s.surface.Origin,
		}
		if pose, ok := s.overlay.Pose.Last(); ok {
			st.Robot = &pose
		}
		st.TraceLength = s.overlay.Pose.Trace().Buffer.Len()
		return nil
	})
	if err != nil {
		return fail(c, err)
	}

	if s.bridge != nil {
		st.BridgeConnected = s.bridge.IsConnected()
		stats := s.bridge.Stats()
		st.Bridge = &stats
	}
	st.Loop = s.loop.Stats()
	st.Scene = s.sceneHub.Stats()
	st.Gestures = s.gestures.Stats()
	return c.JSON(st)
}

// handleScene returns the current scene as SVG
func (s *Server) handleScene(c *fiber.Ctx) error {
	var frame []byte
	if err := s.do(c, func() error {
		frame = s.render()
		return nil
	}); err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/svg+xml")
	return c.Send(frame)
}

// ViewRequest changes the zoom and pans the view. Omitted fields are unchanged.
type ViewRequest struct {
	Zoom  *float64 `json:"zoom"`
	ZoomX *float64 `json:"zoom_x"`
	ZoomY *float64 `json:"zoom_y"`
	PanX  float64  `json:"pan_x"`
	PanY  float64  `json:"pan_y"`
}

// handleView updates zoom and pan
func (s *Server) handleView(c *fiber.Ctx) error {
	var req ViewRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
	}

	var view View
	err := s.do(c, func() error {
		zoom := s.surface.Zoom
		if req.Zoom != nil {
			zoom = scene.Scale{X: *req.Zoom, Y: *req.Zoom}
		}
		if req.ZoomX != nil {
			zoom.X = *req.ZoomX
		}
		if req.ZoomY != nil {
			zoom.Y = *req.ZoomY
		}
		if err := s.surface.SetZoom(zoom.X, zoom.Y); err != nil {
			return err
		}
		s.surface.Pan(req.PanX, req.PanY)
		view = View{Width: s.surface.Width, Height: s.surface.Height, Zoom: s.surface.Zoom, Origin: s.surface.Origin}
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(view)
}

// handleScaleInit captures the current zoom for every component
func (s *Server) handleScaleInit(c *fiber.Ctx) error {
	if err := s.do(c, s.overlay.InitScale); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "initialized"})
}

// handleScaleReset returns every component to the uninitialized state
func (s *Server) handleScaleReset(c *fiber.Ctx) error {
	if err := s.do(c, func() error {
		s.overlay.ResetScale()
		return nil
	}); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "reset"})
}

// PositionRequest is a robot-frame position in meters
type PositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func parsePosition(c *fiber.Ctx) (geom.Position2D, error) {
	var req PositionRequest
	if err := c.BodyParser(&req); err != nil {
		return geom.Position2D{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return geom.Position2D{X: req.X, Y: req.Y}, nil
}

// handleGoalStart anchors a goal selection
func (s *Server) handleGoalStart(c *fiber.Ctx) error {
	pos, err := parsePosition(c)
	if err != nil {
		return fail(c, err)
	}
	if err := s.do(c, func() error {
		s.overlay.Goal.StartSelection(pos)
		return nil
	}); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "selecting"})
}

// handleGoalOrient orients the selection towards a position
func (s *Server) handleGoalOrient(c *fiber.Ctx) error {
	pos, err := parsePosition(c)
	if err != nil {
		return fail(c, err)
	}
	var rotation float64
	if err := s.do(c, func() error {
		if err := s.overlay.Goal.UpdateSelection(pos); err != nil {
			return err
		}
		rotation = s.overlay.Goal.Indicator().Rotation
		return nil
	}); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"rotation": rotation})
}

// GoalResponse describes a selected or sent goal
type GoalResponse struct {
	ID     string      `json:"id,omitempty"`
	Pose   geom.Pose2D `json:"pose"`
	Status string      `json:"status,omitempty"`
	Sent   bool        `json:"sent"`
}

// handleGoalEnd ends the selection and, unless ?send=false, sends the goal
func (s *Server) handleGoalEnd(c *fiber.Ctx) error {
	send := c.QueryBool("send", true)

	var resp GoalResponse
	err := s.do(c, func() error {
		pose, err := s.overlay.Goal.EndSelection()
		if err != nil {
			return err
		}
		resp.Pose = pose
		if !send {
			return nil
		}
		pg, err := s.sendGoal(pose)
		if err != nil {
			return err
		}
		resp.ID, resp.Status, resp.Sent = pg.ID(), pg.Status().String(), true
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

// handleGoalCancel abandons the selection in progress
func (s *Server) handleGoalCancel(c *fiber.Ctx) error {
	if err := s.do(c, func() error {
		s.overlay.Goal.CancelSelection()
		return nil
	}); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "idle"})
}

// SendGoalRequest is a goal given directly. Heading is in radians.
type SendGoalRequest struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// handleSendGoal sends a goal without a selection
func (s *Server) handleSendGoal(c *fiber.Ctx) error {
	var req SendGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
	}
	pose := geom.Pose2D{
		Position: geom.Position2D{X: req.X, Y: req.Y},
		Heading:  geom.QuaternionFromHeading(req.Heading),
	}

	var resp GoalResponse
	err := s.do(c, func() error {
		pg, err := s.sendGoal(pose)
		if err != nil {
			return err
		}
		resp = GoalResponse{ID: pg.ID(), Pose: pose, Status: pg.Status().String(), Sent: true}
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// PendingGoalInfo describes an outstanding goal
type PendingGoalInfo struct {
	ID      string      `json:"id"`
	Pose    geom.Pose2D `json:"pose"`
	Heading float64     `json:"heading"`
	Status  string      `json:"status"`
	SentAt  string      `json:"sent_at"`
}

// handleListGoals lists outstanding goals
func (s *Server) handleListGoals(c *fiber.Ctx) error {
	var infos []PendingGoalInfo
	if err := s.do(c, func() error {
		for _, pg := range s.overlay.Goal.Pending() {
			infos = append(infos, PendingGoalInfo{
				ID:      pg.ID(),
				Pose:    pg.Pose(),
				Heading: pg.Pose().Heading.Heading(),
				Status:  pg.Status().String(),
				SentAt:  pg.SentAt().Format("15:04:05"),
			})
		}
		return nil
	}); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"goals": infos,
		"count": len(infos),
	})
}

// handleCancelGoal cancels an outstanding goal
func (s *Server) handleCancelGoal(c *fiber.Ctx) error {
	id := c.Params("id")
	var pg *nav2d.PendingGoal
	if err := s.do(c, func() error {
		var ok bool
		pg, ok = s.overlay.Goal.Lookup(id)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "goal not pending")
		}
		return nil
	}); err != nil {
		return fail(c, err)
	}

	pg.Cancel()
	return c.JSON(fiber.Map{"id": id, "status": "canceling"})
}

// sendGoal must run on the loop. Goals live until the server shuts down or
// they resolve; resolution is reported to gesture sessions.
func (s *Server) sendGoal(pose geom.Pose2D) (*nav2d.PendingGoal, error) {
	pg, err := s.overlay.Goal.SendGoal(s.ctx, pose)
	if err != nil {
		return nil, err
	}
	go s.watchGoal(pg)
	return pg, nil
}

func (s *Server) watchGoal(pg *nav2d.PendingGoal) {
	<-pg.Done()
	g := goalInfo(pg)
	s.gestures.NotifyResult(g)
}

func goalInfo(pg *nav2d.PendingGoal) gesture.Goal {
	pose := pg.Pose()
	g := gesture.Goal{
		ID:      pg.ID(),
		X:       pose.Position.X,
		Y:       pose.Position.Y,
		Heading: pose.Heading.Heading(),
		Status:  pg.Status().String(),
	}
	if err := pg.Err(); err != nil {
		g.Error = err.Error()
	}
	return g
}

// gestureHandler drives goal selection from pixel-space pointer events
type gestureHandler struct {
	s *Server
}

func (h *gestureHandler) PointerDown(ctx context.Context, x, y float64) error {
	return h.s.loop.Do(ctx, func() error {
		h.s.overlay.Goal.StartSelection(h.s.surface.ScreenToWorld(x, y))
		return nil
	})
}

func (h *gestureHandler) PointerMove(ctx context.Context, x, y float64) error {
	return h.s.loop.Do(ctx, func() error {
		return h.s.overlay.Goal.UpdateSelection(h.s.surface.ScreenToWorld(x, y))
	})
}

func (h *gestureHandler) PointerUp(ctx context.Context) (*gesture.Goal, error) {
	var g gesture.Goal
	err := h.s.loop.Do(ctx, func() error {
		pose, err := h.s.overlay.Goal.EndSelection()
		if err != nil {
			return err
		}
		pg, err := h.s.sendGoal(pose)
		if err != nil {
			return err
		}
		g = goalInfo(pg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (h *gestureHandler) PointerCancel(ctx context.Context) error {
	return h.s.loop.Do(ctx, func() error {
		h.s.overlay.Goal.CancelSelection()
		return nil
	})
}
