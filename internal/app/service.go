package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jaminalder/tictactoe-engine/internal/engine"
)

// Errors exposed by the service layer.
var (
	ErrNotFound = errors.New("game not found")
)

// GameView is a copy of a hosted game for callers outside the service.
type GameView struct {
	ID      string
	Game    Snapshot
	Created time.Time
	Updated time.Time
}

// Options configures a Service. Zero values pick defaults, except AIDelay
// where zero means the automated side replies without waiting.
type Options struct {
	AIDelay       time.Duration
	Difficulty    engine.Difficulty
	VsAI          bool
	GameExpiry    time.Duration
	SweepInterval time.Duration
	// SubscriberBuffer is how many payloads a subscriber may lag behind
	// before it is dropped.
	SubscriberBuffer int
	// Scheduler and Rand are shared by every game; nil picks the real ones.
	Scheduler Scheduler
	Rand      engine.Rand
}

// GameOptions overrides the service defaults for one game.
type GameOptions struct {
	VsAI       *bool
	Difficulty *engine.Difficulty
}

type session struct {
	id       string
	ctrl     *Controller
	created  time.Time
	updated  atomic.Int64
	unlisten func()

	// sendMu orders broadcasts so no subscriber sees an older render
	// after a newer one.
	sendMu sync.Mutex
}

func (s *session) touch(now time.Time) { s.updated.Store(now.UnixNano()) }

func (s *session) view() GameView {
	return GameView{
		ID:      s.id,
		Game:    s.ctrl.Snapshot(),
		Created: s.created,
		Updated: time.Unix(0, s.updated.Load()),
	}
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// offer hands b over without blocking. It reports false if the buffer is
// full.
func (s *subscriber) offer(b []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- b:
		return true
	default:
		return false
	}
}

// Service hosts games and fans their changes out to subscribers.
type Service struct {
	opts     Options
	logger   *zap.Logger
	selector *engine.Selector
	games    *xsync.MapOf[string, *session]

	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	render func(GameView) []byte
}

// NewService creates a service with a renderer that encodes nothing.
func NewService(opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.AIDelay < 0 {
		opts.AIDelay = 0
	}
	if opts.GameExpiry == 0 {
		opts.GameExpiry = 24 * time.Hour
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = time.Hour
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 16
	}
	return &Service{
		opts:     opts,
		logger:   logger,
		selector: engine.NewSelector(&lockedRand{r: opts.Rand}, logger.Named("engine")),
		games:    xsync.NewMapOf[string, *session](),
		subs:     make(map[string]map[*subscriber]struct{}),
		render:   func(GameView) []byte { return nil },
	}
}

// lockedRand serialises a Rand shared by games running on different
// goroutines.
type lockedRand struct {
	mu sync.Mutex
	r  engine.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(GameView) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if renderer == nil {
		s.render = func(GameView) []byte { return nil }
		return
	}
	s.render = renderer
}

// CreateGame creates and registers a new game.
func (s *Service) CreateGame(opts GameOptions) (*GameView, error) {
	vsAI, diff := s.opts.VsAI, s.opts.Difficulty
	if opts.VsAI != nil {
		vsAI = *opts.VsAI
	}
	if opts.Difficulty != nil {
		diff = *opts.Difficulty
	}
	if diff > engine.Hard {
		return nil, engine.ErrUnknownDifficulty
	}

	id := newGameID()
	now := time.Now()
	sess := &session{id: id, created: now}
	sess.touch(now)
	sess.ctrl = NewController(ControllerOptions{
		Selector:   s.selector,
		Scheduler:  s.opts.Scheduler,
		Logger:     s.logger.With(zap.String("game", id)),
		AIDelay:    s.opts.AIDelay,
		Difficulty: diff,
		VsAI:       vsAI,
	})
	sess.unlisten = sess.ctrl.OnEvent(func(ev Event) {
		sess.touch(time.Now())
		s.broadcast(sess)
	})
	s.games.Store(id, sess)

	s.logger.Info("game created",
		zap.String("game", id),
		zap.Bool("vs_ai", vsAI),
		zap.Stringer("difficulty", diff))
	v := sess.view()
	return &v, nil
}

// Get returns a copy of the game if present.
func (s *Service) Get(id string) (*GameView, bool) {
	sess, ok := s.games.Load(id)
	if !ok {
		return nil, false
	}
	v := sess.view()
	return &v, true
}

// Len returns the number of hosted games.
func (s *Service) Len() int { return s.games.Size() }

// Play applies a human move at cell and returns the updated game.
func (s *Service) Play(id string, cell int) (*GameView, error) {
	return s.with(id, func(c *Controller) error {
		_, err := c.ApplyMove(cell)
		return err
	})
}

// Reset starts the game over.
func (s *Service) Reset(id string) (*GameView, error) {
	return s.with(id, func(c *Controller) error {
		c.Reset()
		return nil
	})
}

// SetDifficulty changes the automated player's strength.
func (s *Service) SetDifficulty(id string, d engine.Difficulty) (*GameView, error) {
	return s.with(id, func(c *Controller) error { return c.SetDifficulty(d) })
}

// SetMode switches between vs-AI and two-player mode.
func (s *Service) SetMode(id string, vsAI bool) (*GameView, error) {
	return s.with(id, func(c *Controller) error {
		c.SetMode(vsAI)
		return nil
	})
}

// PlayAI makes the automated side move immediately.
func (s *Service) PlayAI(id string) (*GameView, error) {
	return s.with(id, func(c *Controller) error {
		_, err := c.PlayAI()
		return err
	})
}

// with runs fn against the game's controller. The returned view is current
// even when fn fails, so callers can re-render.
func (s *Service) with(id string, fn func(*Controller) error) (*GameView, error) {
	sess, ok := s.games.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	err := fn(sess.ctrl)
	v := sess.view()
	return &v, err
}

// Delete removes a game, cancelling its pending move and closing its
// subscribers.
func (s *Service) Delete(id string) bool {
	sess, ok := s.games.LoadAndDelete(id)
	if !ok {
		return false
	}
	sess.unlisten()
	sess.ctrl.Close()

	s.mu.Lock()
	set := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	for sub := range set {
		sub.close()
	}
	return true
}

func (s *Service) broadcast(sess *session) {
	var toDrop []*subscriber

	// The view is read under sendMu, so renders leave in state order even
	// when a timer move and a request move broadcast concurrently.
	sess.sendMu.Lock()
	s.mu.Lock()
	subs := s.copySubsLocked(sess.id)
	render := s.render
	s.mu.Unlock()
	if len(subs) == 0 {
		sess.sendMu.Unlock()
		return
	}
	payload := render(sess.view())

	// Fan-out; drop slow subscribers by closing and marking for deletion
	for sub := range subs {
		if !sub.offer(payload) {
			sub.close()
			toDrop = append(toDrop, sub)
		}
	}
	sess.sendMu.Unlock()

	if len(toDrop) > 0 {
		s.mu.Lock()
		for _, sub := range toDrop {
			if set, ok := s.subs[sess.id]; ok {
				delete(set, sub)
			}
		}
		s.mu.Unlock()
		s.logger.Debug("dropped slow subscribers",
			zap.String("game", sess.id),
			zap.Int("count", len(toDrop)))
	}
}

// Subscribe registers a subscriber for a game. Returns a channel and an
// unsubscribe func. The subscription ends with ctx.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Delete removes the game before taking mu, so checking here keeps a
	// deleted game from getting a new subscriber set.
	if _, ok := s.games.Load(id); !ok {
		return nil, nil, ErrNotFound
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan []byte, s.opts.SubscriberBuffer)}
	set[sub] = struct{}{}

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
			s.mu.Unlock()
			sub.close()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub, nil
}

func (s *Service) copySubsLocked(id string) map[*subscriber]struct{} {
	out := make(map[*subscriber]struct{})
	if set, ok := s.subs[id]; ok {
		for k := range set {
			out[k] = struct{}{}
		}
	}
	return out
}

// Start runs the expiry sweeper until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	errg, ctx := errgroup.WithContext(ctx)

	errg.Go(func() error {
		ticker := time.NewTicker(s.opts.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				s.Sweep(now)
			}
		}
	})

	return errg.Wait()
}

// Sweep deletes games that have not changed within the expiry window and
// returns how many were removed.
func (s *Service) Sweep(now time.Time) int {
	var expired []string
	s.games.Range(func(id string, sess *session) bool {
		if time.Unix(0, sess.updated.Load()).Add(s.opts.GameExpiry).Before(now) {
			expired = append(expired, id)
		}
		return true
	})
	n := 0
	for _, id := range expired {
		if s.Delete(id) {
			n++
			s.logger.Debug("game expired, deleting", zap.String("game", id))
		}
	}
	return n
}
