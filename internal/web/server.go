package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jaminalder/tictactoe-engine/internal/app"
)

// Options configures the HTTP layer. Zero values pick defaults.
type Options struct {
	Logger    *zap.Logger
	Heartbeat time.Duration
	// CheckOrigin vets websocket origins; nil uses the same-host check.
	CheckOrigin func(r *http.Request) bool
}

// NewServer wires routes and returns an http.Handler. It installs the board
// renderer used for SSE broadcasts on s.
func NewServer(s *app.Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	h := &handlers{
		svc:       s,
		tpl:       loadTemplates(),
		logger:    opts.Logger,
		heartbeat: opts.Heartbeat,
		upgrader:  websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
	}
	s.SetRenderer(func(gv app.GameView) []byte { return h.renderBoard(gv, "") })

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))

	r.Get("/", h.index)
	r.Get("/health", h.health)
	r.Post("/game", h.create)
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/", h.view)
		r.Get("/state", h.state)
		r.Get("/events", h.events)
		r.Get("/ws", h.ws)
		r.Post("/play", h.play)
		r.Post("/reset", h.reset)
		r.Post("/difficulty", h.difficulty)
		r.Post("/mode", h.mode)
		r.Post("/ai", h.ai)
	})
	return r
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
