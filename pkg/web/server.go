// Package web serves the navigation overlay: a JSON API for the view, the
// scale lifecycle and goals, the rendered scene as SVG, a websocket that
// pushes scene frames, and a websocket for pointer gestures.
package web

import (
	"bytes"
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-nav2d/pkg/gesture"
	"github.com/teslashibe/go-nav2d/pkg/hub"
	"github.com/teslashibe/go-nav2d/pkg/loop"
	"github.com/teslashibe/go-nav2d/pkg/nav2d"
	"github.com/teslashibe/go-nav2d/pkg/rosbridge"
	"github.com/teslashibe/go-nav2d/pkg/scene"
)

//go:embed static
var static embed.FS

// Bridge reports the middleware connection state. *rosbridge.Client
// implements it.
type Bridge interface {
	IsConnected() bool
	Stats() rosbridge.ClientStats
}

// Options configures a Server.
type Options struct {
	Port string

	// Loop owns the surface and overlay. Every handler touches them through it.
	Loop    *loop.Loop
	Surface *scene.Surface
	Overlay *nav2d.Overlay

	// Bridge is optional.
	Bridge Bridge

	// FrameInterval is how often the scene is pushed to viewers.
	FrameInterval time.Duration

	Logger *slog.Logger
}

// Server is the overlay web server
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	loop    *loop.Loop
	surface *scene.Surface
	overlay *nav2d.Overlay
	bridge  Bridge

	// Hubs for websocket traffic
	sceneHub *hub.Hub
	gestures *gesture.Hub

	frameInterval time.Duration
	lastFrame     []byte

	// ctx bounds goals sent through the server
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new overlay web server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		port:          opts.Port,
		logger:        opts.Logger.With("component", "web"),
		loop:          opts.Loop,
		surface:       opts.Surface,
		overlay:       opts.Overlay,
		bridge:        opts.Bridge,
		sceneHub:      hub.New("scene", opts.Logger, hub.WithReplay()),
		frameInterval: opts.FrameInterval,
		ctx:           ctx,
		cancel:        cancel,
	}
	s.gestures = gesture.NewHub(&gestureHandler{s: s}, opts.Logger)

	app := fiber.New(fiber.Config{
		AppName:               "nav2d",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/scene.svg", s.handleScene)
	api.Post("/view", s.handleView)
	api.Post("/scale/init", s.handleScaleInit)
	api.Post("/scale/reset", s.handleScaleReset)
	api.Post("/goal/start", s.handleGoalStart)
	api.Post("/goal/orient", s.handleGoalOrient)
	api.Post("/goal/end", s.handleGoalEnd)
	api.Post("/goal/cancel", s.handleGoalCancel)
	api.Get("/goals", s.handleListGoals)
	api.Post("/goals", s.handleSendGoal)
	api.Delete("/goals/:id", s.handleCancelGoal)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/scene", websocket.New(s.handleSceneWS))
	s.gestures.RegisterRoutes(app)

	// Static viewer
	root, _ := fs.Sub(static, "static")
	app.Use("/", filesystem.New(filesystem.Config{Root: http.FS(root)}))

	s.app = app
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// SceneHub returns the hub that pushes scene frames
func (s *Server) SceneHub() *hub.Hub {
	return s.sceneHub
}

// Gestures returns the gesture session hub
func (s *Server) Gestures() *gesture.Hub {
	return s.gestures
}

// Start runs the hubs and serves on the configured port until ctx is done
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("web server listening", "addr", ln.Addr().String())

	go s.sceneHub.Run(ctx)
	go s.pushFrames(ctx)
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	return s.app.Listener(ln)
}

// Shutdown cancels goals sent through the server and stops serving
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}

// pushFrames renders the scene periodically and broadcasts changed frames
func (s *Server) pushFrames(ctx context.Context) {
	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.sceneHub.ClientCount() == 0 {
				continue
			}
			if err := s.PushFrame(ctx); err != nil {
				s.logger.Debug("frame push skipped", "error", err)
			}
		}
	}
}

// PushFrame renders the scene and broadcasts it when it changed since the
// last push
func (s *Server) PushFrame(ctx context.Context) error {
	var frame []byte
	err := s.loop.Do(ctx, func() error {
		frame = s.render()
		if bytes.Equal(frame, s.lastFrame) {
			frame = nil
			return nil
		}
		s.lastFrame = frame
		return nil
	})
	if err != nil || frame == nil {
		return err
	}
	s.sceneHub.BroadcastText(frame)
	return nil
}

// render must run on the loop
func (s *Server) render() []byte {
	var buf bytes.Buffer
	s.surface.RenderSVG(&buf)
	return buf.Bytes()
}

// handleSceneWS streams scene frames to a viewer
func (s *Server) handleSceneWS(c *websocket.Conn) {
	client := hub.NewClient(s.sceneHub, c)
	client.Run()
}
