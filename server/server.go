package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/tarungka/keyedwire/internal/logger"
)

// Server exposes a running engine over HTTP:
//
//	GET /health       liveness
//	GET /engine       run status and counters
//	GET /state/{key}  the state cell of one key
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates a server listening on addr once Start is called.
func New(addr string, view EngineView) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(view),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.GetLogger("http"),
	}
}

// NewRouter builds the routes for view.
func NewRouter(view EngineView) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/health"))
	router.Use(middleware.CleanPath)
	router.Use(middleware.RequestID)

	router.Get("/engine", engineHandler(view))
	router.Mount("/state", StateRouter(view))

	return router
}

// Start listens on the configured address and serves in the background. The
// returned error only covers binding the listener.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info().Msgf("running the web server on %s", ln.Addr())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Err(err).Msg("web server stopped")
		}
	}()
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func engineHandler(view EngineView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SendResponse(w, true, view.Stats(), "")
	}
}
