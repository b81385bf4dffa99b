package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jaminalder/tictactoe-engine/internal/app"
	"github.com/jaminalder/tictactoe-engine/internal/domain"
	"github.com/jaminalder/tictactoe-engine/internal/engine"
)

type handlers struct {
	svc       *app.Service
	tpl       *templates
	logger    *zap.Logger
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func (h *handlers) renderBoard(gv app.GameView, errMsg string) []byte {
	return renderTemplate(h.tpl.board, boardData{ID: gv.ID, Game: gv.Game, Error: errMsg})
}

// errorMessage maps core errors onto what the player sees.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, app.ErrNotVsAI):
		return "Computer player is off"
	case errors.Is(err, domain.ErrCellOccupied):
		return "Cell is occupied"
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return "Out of bounds"
	case errors.Is(err, domain.ErrGameOver):
		return "Game is over"
	case errors.Is(err, engine.ErrUnknownDifficulty):
		return "Unknown difficulty"
	default:
		return "Invalid move"
	}
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.index, nil))
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	var opts app.GameOptions
	if v := r.Form.Get("vs_ai"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid vs_ai", http.StatusBadRequest)
			return
		}
		opts.VsAI = &b
	}
	if v := r.Form.Get("difficulty"); v != "" {
		d, err := engine.ParseDifficulty(v)
		if err != nil {
			http.Error(w, "invalid difficulty", http.StatusBadRequest)
			return
		}
		opts.Difficulty = &d
	}
	gv, err := h.svc.CreateGame(opts)
	if err != nil {
		h.logger.Error("failed to create game", zap.Error(err))
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/game/"+gv.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	gv, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	// Render page with embedded board container
	_, _ = w.Write(renderTemplate(h.tpl.game, boardData{ID: gv.ID, Game: gv.Game}))
}

// mutate runs a service call and answers with the board fragment, showing
// the error banner when the call was rejected.
func (h *handlers) mutate(w http.ResponseWriter, r *http.Request, fn func(id string) (*app.GameView, error)) {
	id := chi.URLParam(r, "id")
	gv, err := fn(id)
	if errors.Is(err, app.ErrNotFound) || gv == nil {
		http.NotFound(w, r)
		return
	}
	var errMsg string
	if err != nil {
		errMsg = errorMessage(err)
		h.logger.Debug("request rejected",
			zap.String("game", id),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.renderBoard(*gv, errMsg))
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	h.mutate(w, r, func(id string) (*app.GameView, error) {
		cell, err := strconv.Atoi(r.Form.Get("cell"))
		if err != nil {
			gv, ok := h.svc.Get(id)
			if !ok {
				return nil, app.ErrNotFound
			}
			return gv, domain.ErrIndexOutOfRange
		}
		return h.svc.Play(id, cell)
	})
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Reset)
}

func (h *handlers) difficulty(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	h.mutate(w, r, func(id string) (*app.GameView, error) {
		d, err := engine.ParseDifficulty(r.Form.Get("level"))
		if err != nil {
			gv, ok := h.svc.Get(id)
			if !ok {
				return nil, app.ErrNotFound
			}
			return gv, err
		}
		return h.svc.SetDifficulty(id, d)
	})
}

func (h *handlers) mode(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	h.mutate(w, r, func(id string) (*app.GameView, error) {
		vsAI, err := strconv.ParseBool(r.Form.Get("vs_ai"))
		if err != nil {
			gv, ok := h.svc.Get(id)
			if !ok {
				return nil, app.ErrNotFound
			}
			return gv, err
		}
		return h.svc.SetMode(id, vsAI)
	})
}

func (h *handlers) ai(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.PlayAI)
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	gv, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newStateJSON(*gv)); err != nil {
		h.logger.Warn("failed to write state", zap.Error(err))
	}
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// In tests or non-EventSource requests, just acknowledge headers and return
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer unsub()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, "board", b)
			flusher.Flush()
		}
	}
}

// writeSSE writes one event; every payload line gets its own data field.
func writeSSE(w io.Writer, event string, payload []byte) {
	var s strings.Builder
	s.WriteString("event: ")
	s.WriteString(event)
	s.WriteByte('\n')
	for _, line := range strings.Split(string(payload), "\n") {
		s.WriteString("data: ")
		s.WriteString(line)
		s.WriteByte('\n')
	}
	s.WriteByte('\n')
	_, _ = io.WriteString(w, s.String())
}

// stateJSON is the wire form of a game for JSON and websocket clients.
type stateJSON struct {
	ID         string              `json:"id"`
	Board      [domain.Size]string `json:"board"`
	Turn       string              `json:"turn"`
	Ply        int                 `json:"ply"`
	Phase      string              `json:"phase"`
	Result     string              `json:"result"`
	Winner     string              `json:"winner,omitempty"`
	Difficulty engine.Difficulty   `json:"difficulty"`
	VsAI       bool                `json:"vs_ai"`
	AIMark     string              `json:"ai_mark"`
	Pending    bool                `json:"pending"`
	AIError    string              `json:"ai_error,omitempty"`
	Status     string              `json:"status"`
}

func newStateJSON(gv app.GameView) stateJSON {
	g := gv.Game
	s := stateJSON{
		ID:         gv.ID,
		Turn:       g.Turn.String(),
		Ply:        g.Ply,
		Phase:      g.Phase.String(),
		Result:     g.Outcome.Result.String(),
		Winner:     g.Outcome.Winner.String(),
		Difficulty: g.Difficulty,
		VsAI:       g.VsAI,
		AIMark:     g.AIMark.String(),
		Pending:    g.Pending,
		AIError:    g.AIError,
		Status:     boardData{Game: g}.Status(),
	}
	for i, m := range g.Board {
		s.Board[i] = m.String()
	}
	return s
}
