package httpapi

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"alertrelay/internal/logger"
	"alertrelay/pkg/models"
)

// Snapshotter exposes the current alert state.
type Snapshotter interface {
	Snapshot() models.Snapshot
}

// Options wires the status server.
type Options struct {
	State Snapshotter
	// SessionState reports the transport state; nil omits it.
	SessionState func() string
	Metrics      http.Handler
}

// Server serves health, state and metrics endpoints.
type Server struct {
	app     *fiber.App
	started time.Time
	ln      net.Listener
	served  chan error
}

// New builds the routes.
func New(opts Options) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			AppName:               "alertrelay",
		}),
		started: time.Now(),
	}

	s.app.Get("/health", func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status": "ok",
			"time":   time.Now().UTC(),
			"uptime": time.Since(s.started).Round(time.Second).String(),
		}
		if opts.SessionState != nil {
			body["session"] = opts.SessionState()
		}
		return c.JSON(body)
	})

	s.app.Get("/state", func(c *fiber.Ctx) error {
		if opts.State == nil {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"code": "no_state", "message": "State store not ready"})
		}
		snap := opts.State.Snapshot().Normalized()
		return c.JSON(fiber.Map{
			"taken_at": snap.TakenAt,
			"active":   snap.Active(),
			"alerts":   snap.Combined(),
			"regions":  snap.Regions,
		})
	})

	s.app.Get("/state/:region", func(c *fiber.Ctx) error {
		if opts.State == nil {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"code": "no_state", "message": "State store not ready"})
		}
		region := c.Params("region")
		st, ok := opts.State.Snapshot().Regions[region]
		if !ok {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"code": "not_found", "message": "Region not tracked"})
		}
		return c.JSON(fiber.Map{
			"region": region,
			"state":  models.StateFlag(st.Active()),
			"alerts": st.WithEmptyLists(),
		})
	})

	if opts.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start binds addr and serves in the background until Stop.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ln = ln
	s.served = make(chan error, 1)
	logger.Infof("Status server listening on %s", ln.Addr())
	go func() {
		s.served <- s.app.Listener(ln)
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop shuts the server down, waiting at most timeout for open requests,
// and returns once the serve loop has exited.
func (s *Server) Stop(timeout time.Duration) error {
	if s.served == nil {
		return nil
	}
	err := s.app.ShutdownWithTimeout(timeout)
	// Closing the listener also ends a serve loop that had not registered
	// it with fiber yet.
	s.ln.Close()
	if serveErr := <-s.served; serveErr != nil && !errors.Is(serveErr, net.ErrClosed) && err == nil {
		err = serveErr
	}
	s.served = nil
	return err
}
