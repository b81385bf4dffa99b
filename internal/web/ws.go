package web

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/jaminalder/tictactoe-engine/internal/engine"
)

const writeWait = 10 * time.Second

// Message is a JSON frame on the websocket, in both directions.
type Message struct {
	Type     string      `json:"type"`
	Contents interface{} `json:"contents,omitempty"`
}

// Client commands carried in Message.Contents.
type (
	PlayRequest struct {
		Cell *int `mapstructure:"cell"`
	}
	DifficultyRequest struct {
		Level string `mapstructure:"level"`
	}
	ModeRequest struct {
		VsAI bool `mapstructure:"vs_ai"`
	}
	ErrorResponse struct {
		Error string `json:"error"`
	}
)

var errMissingCell = errors.New("play request has no cell")

// wholeNumber rejects JSON numbers with a fractional part before they are
// truncated into an int field.
func wholeNumber(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}
	if f, ok := data.(float64); ok && f != math.Trunc(f) {
		return nil, fmt.Errorf("%v is not a whole number", f)
	}
	return data, nil
}

func decodePlay(contents interface{}) (int, error) {
	var req PlayRequest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: wholeNumber,
		Result:     &req,
	})
	if err != nil {
		return 0, err
	}
	if err := dec.Decode(contents); err != nil {
		return 0, err
	}
	if req.Cell == nil {
		return 0, errMissingCell
	}
	return *req.Cell, nil
}

// handleCommand applies one client frame to the game.
func (h *handlers) handleCommand(id string, msg Message) error {
	var err error
	switch msg.Type {
	case "play":
		cell, derr := decodePlay(msg.Contents)
		if derr != nil {
			return fmt.Errorf("unable to parse play request: %w", derr)
		}
		_, err = h.svc.Play(id, cell)
	case "reset":
		_, err = h.svc.Reset(id)
	case "difficulty":
		var req DifficultyRequest
		if err = mapstructure.Decode(msg.Contents, &req); err != nil {
			return fmt.Errorf("unable to parse difficulty request: %w", err)
		}
		d, perr := engine.ParseDifficulty(req.Level)
		if perr != nil {
			return perr
		}
		_, err = h.svc.SetDifficulty(id, d)
	case "mode":
		var req ModeRequest
		if err = mapstructure.Decode(msg.Contents, &req); err != nil {
			return fmt.Errorf("unable to parse mode request: %w", err)
		}
		_, err = h.svc.SetMode(id, req.VsAI)
	case "ai":
		_, err = h.svc.PlayAI(id)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return err
}

func (h *handlers) ws(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		return
	}
	defer unsub()

	replies := make(chan Message, 4)
	readErr := make(chan error, 1)
	go func() {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			if err := h.handleCommand(id, msg); err != nil {
				select {
				case replies <- Message{Type: "error", Contents: ErrorResponse{Error: commandError(err)}}:
				default:
				}
			}
		}
	}()

	send := func(msg Message) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("websocket write failed", zap.String("game", id), zap.Error(err))
			return false
		}
		return true
	}
	sendState := func() bool {
		gv, ok := h.svc.Get(id)
		if !ok {
			return false
		}
		return send(Message{Type: "state", Contents: newStateJSON(*gv)})
	}

	if !sendState() {
		return
	}
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("client errored or disconnected", zap.String("game", id), zap.Error(err))
			}
			return
		case msg := <-replies:
			if !send(msg) {
				return
			}
		case _, ok := <-updates:
			if !ok || !sendState() {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// commandError is errorMessage plus the decoding failures only websocket
// clients can produce.
func commandError(err error) string {
	switch msg := errorMessage(err); msg {
	case "Invalid move":
		return err.Error()
	default:
		return msg
	}
}
