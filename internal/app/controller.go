package app

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jaminalder/tictactoe-engine/internal/domain"
	"github.com/jaminalder/tictactoe-engine/internal/engine"
)

// DefaultAIDelay is how long the automated reply waits after a human move.
const DefaultAIDelay = 350 * time.Millisecond

var (
	ErrNotYourTurn = errors.New("not your turn")
	// ErrNotVsAI is returned when an automated move is requested in
	// two-player mode.
	ErrNotVsAI = errors.New("automated player is off")
)

// Phase is the controller's state machine position.
type Phase uint8

const (
	AwaitingMove Phase = iota
	Terminal
)

func (p Phase) String() string {
	if p == Terminal {
		return "terminal"
	}
	return "awaiting move"
}

// GameState is the authoritative state of one game. Only its Controller
// mutates it.
type GameState struct {
	Board      domain.Board
	Ply        int
	Difficulty engine.Difficulty
	VsAI       bool
	Locked     bool
	Outcome    domain.Outcome
}

// Turn returns the mark on move.
func (s GameState) Turn() domain.Mark { return domain.TurnAt(s.Ply) }

// Snapshot is a read-only copy of a game for rendering.
type Snapshot struct {
	Board      domain.Board
	Turn       domain.Mark
	Ply        int
	Phase      Phase
	Outcome    domain.Outcome
	Difficulty engine.Difficulty
	VsAI       bool
	AIMark     domain.Mark
	// Pending is set while an automated move is scheduled.
	Pending bool
	// AIError describes the last failed automated move until the next
	// move, reset or difficulty change.
	AIError string
}

// EventKind says what changed.
type EventKind uint8

const (
	EventCellChanged EventKind = iota + 1
	EventGameOver
	EventReset
	EventConfigChanged
	EventAIFailed
)

func (k EventKind) String() string {
	switch k {
	case EventCellChanged:
		return "cell"
	case EventGameOver:
		return "game_over"
	case EventReset:
		return "reset"
	case EventConfigChanged:
		return "config"
	case EventAIFailed:
		return "ai_failed"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after a change has been applied.
// Index and Mark are set for EventCellChanged, Outcome for EventGameOver,
// Err for EventAIFailed.
type Event struct {
	Kind     EventKind
	Index    int
	Mark     domain.Mark
	Outcome  domain.Outcome
	Err      error
	Snapshot Snapshot
}

// Listener receives controller events. It runs outside the controller lock
// and may call back into the controller.
type Listener func(Event)

// ControllerOptions configures a Controller. Zero values pick defaults.
type ControllerOptions struct {
	Selector   *engine.Selector
	Scheduler  Scheduler
	Logger     *zap.Logger
	AIMark     domain.Mark
	AIDelay    time.Duration
	Difficulty engine.Difficulty
	VsAI       bool
}

type listenerEntry struct {
	id int
	fn Listener
}

// Controller runs one game: it applies moves, detects the end of the game
// and schedules the automated player's replies.
type Controller struct {
	mu     sync.Mutex
	state  GameState
	aiMark domain.Mark
	delay  time.Duration

	selector *engine.Selector
	sched    Scheduler
	logger   *zap.Logger

	pending Task
	// gen is bumped whenever a scheduled move must not land anymore.
	gen uint64

	aiErr error

	listeners []listenerEntry
	nextID    int
}

// NewController returns a controller for a fresh game.
func NewController(opts ControllerOptions) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Selector == nil {
		opts.Selector = engine.NewSelector(nil, opts.Logger)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler{}
	}
	if !opts.AIMark.Valid() {
		opts.AIMark = domain.First.Opponent()
	}
	if opts.AIDelay < 0 {
		opts.AIDelay = 0
	}
	c := &Controller{
		state:    GameState{Difficulty: opts.Difficulty, VsAI: opts.VsAI},
		aiMark:   opts.AIMark,
		delay:    opts.AIDelay,
		selector: opts.Selector,
		sched:    opts.Scheduler,
		logger:   opts.Logger,
	}
	c.mu.Lock()
	c.maybeTriggerAILocked()
	c.mu.Unlock()
	return c
}

// OnEvent registers fn and returns a function that removes it.
func (c *Controller) OnEvent(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// ApplyMove plays the side on move at cell i on behalf of a human. In vs-AI
// mode the automated side's turn is rejected with ErrNotYourTurn.
// The game state is unchanged on error.
func (c *Controller) ApplyMove(i int) (domain.Outcome, error) {
	c.mu.Lock()
	turn := c.state.Turn()
	if c.state.VsAI && turn == c.aiMark && !c.state.Locked {
		c.mu.Unlock()
		return domain.Outcome{}, ErrNotYourTurn
	}
	evs, err := c.applyMoveLocked(i, turn)
	if err != nil {
		c.mu.Unlock()
		return domain.Outcome{}, err
	}
	c.maybeTriggerAILocked()
	out := c.state.Outcome
	evs = c.stampLocked(evs)
	ls := c.listenersLocked()
	c.mu.Unlock()

	emit(ls, evs)
	return out, nil
}

// applyMoveLocked places expected at i if expected is on move and the game
// is still running.
func (c *Controller) applyMoveLocked(i int, expected domain.Mark) ([]Event, error) {
	if c.state.Locked {
		return nil, domain.ErrGameOver
	}
	if expected != c.state.Turn() {
		return nil, ErrNotYourTurn
	}
	if err := c.state.Board.Set(i, expected); err != nil {
		return nil, err
	}
	c.state.Ply++
	c.aiErr = nil

	evs := []Event{{Kind: EventCellChanged, Index: i, Mark: expected}}
	if out := domain.Status(c.state.Board); out.Terminal() {
		c.state.Locked = true
		c.state.Outcome = out
		c.cancelPendingLocked()
		evs = append(evs, Event{Kind: EventGameOver, Outcome: out})
		c.logger.Debug("game over",
			zap.Stringer("outcome", out),
			zap.Int("ply", c.state.Ply))
	}
	c.logger.Debug("move applied",
		zap.Int("index", i),
		zap.Stringer("mark", expected),
		zap.Int("ply", c.state.Ply))
	return evs, nil
}

// maybeTriggerAILocked schedules the automated reply if the automated side
// is on move. The task re-checks everything when it fires.
func (c *Controller) maybeTriggerAILocked() {
	if !c.state.VsAI || c.state.Locked || c.state.Turn() != c.aiMark || c.pending != nil {
		return
	}
	gen := c.gen
	c.pending = c.sched.Schedule(c.delay, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	evs, idx, err := c.playAILocked()
	if err != nil {
		// Nothing is scheduled now; listeners learn about it so the game
		// can be recovered with PlayAI, SetDifficulty or Reset.
		c.aiErr = err
		evs = c.stampLocked([]Event{{Kind: EventAIFailed, Err: err}})
		ls := c.listenersLocked()
		c.mu.Unlock()

		c.logger.Warn("automated move failed", zap.Error(err))
		emit(ls, evs)
		return
	}
	evs = c.stampLocked(evs)
	ls := c.listenersLocked()
	c.mu.Unlock()

	if idx >= 0 {
		c.logger.Debug("automated move", zap.Int("index", idx))
	}
	emit(ls, evs)
}

// playAILocked asks the selector for a move and applies it. It is a no-op
// returning index -1 when vs-AI is off, the game is over or it is not the
// automated side's turn.
func (c *Controller) playAILocked() ([]Event, int, error) {
	if !c.state.VsAI || c.state.Locked || c.state.Turn() != c.aiMark {
		return nil, -1, nil
	}
	idx, err := c.selector.Select(c.state.Board, c.state.Difficulty, c.aiMark)
	if err != nil {
		return nil, -1, err
	}
	evs, err := c.applyMoveLocked(idx, c.aiMark)
	if err != nil {
		return nil, -1, err
	}
	return evs, idx, nil
}

// PlayAI makes the automated side move now instead of waiting for the
// scheduled task, which is cancelled. It returns the chosen cell.
func (c *Controller) PlayAI() (int, error) {
	c.mu.Lock()
	if !c.state.VsAI {
		c.mu.Unlock()
		return -1, ErrNotVsAI
	}
	if c.state.Locked {
		c.mu.Unlock()
		return -1, domain.ErrGameOver
	}
	if c.state.Turn() != c.aiMark {
		c.mu.Unlock()
		return -1, ErrNotYourTurn
	}
	idx, err := c.selector.Select(c.state.Board, c.state.Difficulty, c.aiMark)
	if err != nil {
		c.mu.Unlock()
		return -1, err
	}
	evs, err := c.applyMoveLocked(idx, c.aiMark)
	if err != nil {
		c.mu.Unlock()
		return -1, err
	}
	c.cancelPendingLocked()
	evs = c.stampLocked(evs)
	ls := c.listenersLocked()
	c.mu.Unlock()

	emit(ls, evs)
	return idx, nil
}

// Reset starts a new game, keeping mode and difficulty. A scheduled
// automated move is cancelled.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.cancelPendingLocked()
	c.state = GameState{Difficulty: c.state.Difficulty, VsAI: c.state.VsAI}
	c.aiErr = nil
	c.maybeTriggerAILocked()
	evs := c.stampLocked([]Event{{Kind: EventReset}})
	ls := c.listenersLocked()
	c.mu.Unlock()

	c.logger.Debug("game reset")
	emit(ls, evs)
}

// SetDifficulty changes the strength used by the next automated move,
// including one that is already scheduled. If the automated side is on
// move with nothing scheduled, as after a failed move, one is scheduled.
func (c *Controller) SetDifficulty(d engine.Difficulty) error {
	if d > engine.Hard {
		return engine.ErrUnknownDifficulty
	}
	c.mu.Lock()
	c.state.Difficulty = d
	c.aiErr = nil
	c.maybeTriggerAILocked()
	evs := c.stampLocked([]Event{{Kind: EventConfigChanged}})
	ls := c.listenersLocked()
	c.mu.Unlock()

	emit(ls, evs)
	return nil
}

// SetMode switches between playing the automated side and two humans.
// Leaving vs-AI mode cancels a scheduled move; entering it on the
// automated side's turn schedules one.
func (c *Controller) SetMode(vsAI bool) {
	c.mu.Lock()
	c.state.VsAI = vsAI
	if vsAI {
		c.maybeTriggerAILocked()
	} else {
		c.cancelPendingLocked()
	}
	evs := c.stampLocked([]Event{{Kind: EventConfigChanged}})
	ls := c.listenersLocked()
	c.mu.Unlock()

	emit(ls, evs)
}

// Snapshot returns a copy of the current game.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close cancels any scheduled move. The controller stays usable.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelPendingLocked()
}

func (c *Controller) cancelPendingLocked() {
	c.gen++
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	phase := AwaitingMove
	if c.state.Locked {
		phase = Terminal
	}
	return Snapshot{
		Board:      c.state.Board,
		Turn:       c.state.Turn(),
		Ply:        c.state.Ply,
		Phase:      phase,
		Outcome:    c.state.Outcome,
		Difficulty: c.state.Difficulty,
		VsAI:       c.state.VsAI,
		AIMark:     c.aiMark,
		Pending:    c.pending != nil,
		AIError:    errString(c.aiErr),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// stampLocked attaches the post-change snapshot to every event.
func (c *Controller) stampLocked(evs []Event) []Event {
	snap := c.snapshotLocked()
	for i := range evs {
		evs[i].Snapshot = snap
	}
	return evs
}

func (c *Controller) listenersLocked() []Listener {
	out := make([]Listener, len(c.listeners))
	for i, l := range c.listeners {
		out[i] = l.fn
	}
	return out
}

func emit(ls []Listener, evs []Event) {
	for _, ev := range evs {
		for _, fn := range ls {
			fn(ev)
		}
	}
}
