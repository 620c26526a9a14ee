// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/sharedesk/lib/clock"
	"github.com/bureau-foundation/sharedesk/lib/cryptobox"
	"github.com/bureau-foundation/sharedesk/lib/desktop"
	"github.com/bureau-foundation/sharedesk/lib/framecodec"
)

// Role is the side of the session a process plays.
type Role int

const (
	// RoleOperator views frames and sends input ("Dépanneur").
	RoleOperator Role = iota + 1
	// RoleClient shares its screen and executes input ("Utilisateur").
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleOperator:
		return "operator"
	case RoleClient:
		return "client"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ParseRole accepts the role names and their French aliases.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "operator", "dépanneur", "depanneur":
		return RoleOperator, nil
	case "client", "utilisateur":
		return RoleClient, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrStartupConfig, name)
	}
}

// Loop names, as reported in FatalError and status.
const (
	LoopCapture  = "capture"
	LoopWatch    = "watch"
	LoopDispatch = "dispatch"
	LoopReceive  = "receive"
)

// Intervals are the base tick periods of the loops.
type Intervals struct {
	Capture  time.Duration
	Watch    time.Duration
	Dispatch time.Duration
	Receive  time.Duration
}

// DefaultIntervals returns 50ms capture, 25ms watch, and 1ms mailbox
// polling.
func DefaultIntervals() Intervals {
	return Intervals{
		Capture:  50 * time.Millisecond,
		Watch:    25 * time.Millisecond,
		Dispatch: time.Millisecond,
		Receive:  time.Millisecond,
	}
}

// mailboxBackoff is the fixed retry delay of the mailbox loops.
const mailboxBackoff = 100 * time.Millisecond

// defaultQueueSize bounds the operator's in-process command queue.
const defaultQueueSize = 256

// SessionContext carries the state every loop of a session shares.
type SessionContext struct {
	Key     *cryptobox.Key
	Storage *Storage
	Clock   clock.Clock
	Logger  *slog.Logger
	Policy  ErrorPolicy
}

// Config selects the role and the collaborators of a session.
type Config struct {
	Role      Role
	Intervals Intervals

	// Client settings.
	Target        desktop.Target
	RemoteControl bool
	Source        FrameSource
	Input         InputSink
	Compressor    *framecodec.Compressor
	FocusSettle   time.Duration

	// Operator settings.
	Display   Display
	QueueSize int
}

// Session is one side of a shared desktop.
type Session struct {
	id     string
	env    SessionContext
	config Config

	frames   FrameChannel
	mailbox  *Mailbox
	detector ChangeDetector
	queue    chan Command

	captureLatency LatencyStats
	displayLatency LatencyStats
	watch          *watchLoop

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	loops   []*Loop
	lastErr error
}

// Validate checks that config has what its role needs, without
// touching the shared folder.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrStartupConfig, err)
	}
	return nil
}

func (c Config) validate() error {
	var errs []error
	switch c.Role {
	case RoleOperator:
		if c.Display == nil {
			errs = append(errs, errors.New("operator needs a display"))
		}
	case RoleClient:
		if c.Source == nil {
			errs = append(errs, errors.New("client needs a frame source"))
		}
		if c.Compressor == nil {
			errs = append(errs, errors.New("client needs a frame compressor"))
		}
		if c.Target.Kind == desktop.TargetWindow && c.Target.Window == "" {
			errs = append(errs, errors.New("no window selected"))
		}
		if c.RemoteControl && c.Input == nil {
			errs = append(errs, errors.New("remote control needs an input sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown role %d", int(c.Role)))
	}
	return errors.Join(errs...)
}

// NewSession validates config and returns a stopped session. Problems
// are reported wrapped in ErrStartupConfig before any file is touched.
func NewSession(env SessionContext, config Config) (*Session, error) {
	var errs []error
	if env.Key == nil {
		errs = append(errs, errors.New("no encryption key"))
	}
	if env.Storage == nil {
		errs = append(errs, errors.New("no shared folder"))
	}
	if err := config.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrStartupConfig, errors.Join(errs...))
	}

	defaults := DefaultIntervals()
	if config.Intervals.Capture <= 0 {
		config.Intervals.Capture = defaults.Capture
	}
	if config.Intervals.Watch <= 0 {
		config.Intervals.Watch = defaults.Watch
	}
	if config.Intervals.Dispatch <= 0 {
		config.Intervals.Dispatch = defaults.Dispatch
	}
	if config.Intervals.Receive <= 0 {
		config.Intervals.Receive = defaults.Receive
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}
	if env.Clock == nil {
		env.Clock = clock.Real()
	}
	if env.Policy.Threshold <= 0 {
		env.Policy.Threshold = DefaultErrorThreshold
	}

	id := uuid.NewString()
	if env.Logger == nil {
		env.Logger = slog.New(slog.DiscardHandler)
	}
	env.Logger = env.Logger.With("session_id", id, "role", config.Role.String())

	session := &Session{
		id:     id,
		env:    env,
		config: config,
		frames: NewFrameChannel(env.Storage),
		queue:  make(chan Command, config.QueueSize),
	}
	session.mailbox = NewMailbox(env.Storage, env.Key, env.Logger)
	return session, nil
}

// ID returns the session id that tags every log line.
func (s *Session) ID() string { return s.id }

// Role returns the session role.
func (s *Session) Role() Role { return s.config.Role }

// roleLoops maps each role to the loops it runs.
var roleLoops = map[Role]func(*Session) []*Loop{
	RoleOperator: (*Session).operatorLoops,
	RoleClient:   (*Session).clientLoops,
}

func (s *Session) newLoop(name string, interval time.Duration, backoff Backoff, tick func(context.Context) error) *Loop {
	return &Loop{
		Name:     name,
		Interval: interval,
		Tick:     tick,
		Policy:   s.env.Policy.WithBackoff(backoff),
		Clock:    s.env.Clock,
		Logger:   s.env.Logger,
	}
}

func (s *Session) operatorLoops() []*Loop {
	s.watch = &watchLoop{
		env:      &s.env,
		frames:   s.frames,
		detector: &s.detector,
		display:  s.config.Display,
		latency:  &s.displayLatency,
	}
	dispatch := &dispatchLoop{env: &s.env, mailbox: s.mailbox, queue: s.queue}

	// The watch loop backs off to the capture interval, twice its own.
	return []*Loop{
		s.newLoop(LoopWatch, s.config.Intervals.Watch, DoublingBackoff, s.watch.tick),
		s.newLoop(LoopDispatch, s.config.Intervals.Dispatch, FixedBackoff(mailboxBackoff), dispatch.tick),
	}
}

func (s *Session) clientLoops() []*Loop {
	capture := &captureLoop{
		env:        &s.env,
		target:     s.config.Target,
		source:     s.config.Source,
		compressor: s.config.Compressor,
		frames:     s.frames,
		latency:    &s.captureLatency,
	}
	loops := []*Loop{
		s.newLoop(LoopCapture, s.config.Intervals.Capture, DoublingBackoff, capture.tick),
	}
	if s.config.RemoteControl {
		executor := NewExecutor(s.config.Target, s.config.Source, s.config.Input,
			s.config.FocusSettle, s.env.Clock, s.env.Logger)
		receive := &receiveLoop{mailbox: s.mailbox, executor: executor}
		loops = append(loops, s.newLoop(LoopReceive, s.config.Intervals.Receive, FixedBackoff(mailboxBackoff), receive.tick))
	}
	return loops
}

// Run starts the role's loops and blocks until they stop. It returns
// nil when stopped through Stop or ctx, and the first *FatalError
// otherwise; a fatal error in one loop stops all of them.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.cancel = cancel
	s.lastErr = nil
	s.mu.Unlock()

	err := s.run(runCtx, cancel)

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc) error {
	if s.config.Role == RoleOperator {
		if err := s.mailbox.Seed(ctx); err != nil {
			return err
		}
		// A restarted operator redraws the current frame even if it
		// has not changed.
		s.detector.Reset()
	}

	s.mu.Lock()
	loops := roleLoops[s.config.Role](s)
	s.loops = loops
	s.mu.Unlock()

	names := make([]string, len(loops))
	for index, loop := range loops {
		names[index] = loop.Name
	}
	s.env.Logger.Info("session started",
		"shared_folder", s.env.Storage.Dir(),
		"target", s.config.Target.String(),
		"remote_control", s.config.RemoteControl,
		"loops", names,
	)

	results := make(chan error, len(loops))
	for _, loop := range loops {
		go func() { results <- loop.Run(ctx) }()
	}

	var fatal error
	for range loops {
		err := <-results
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		if fatal == nil {
			fatal = err
			s.env.Logger.Error("session stopped", "error", err)
			cancel()
		}
	}
	if fatal == nil {
		s.env.Logger.Info("session stopped")
	}
	return fatal
}

// Stop cancels a running session. Run returns once every loop has
// exited.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Enqueue queues an operator command for dispatch. The command's
// IssuedAt is set if empty.
func (s *Session) Enqueue(command Command) error {
	if s.config.Role != RoleOperator {
		return ErrNotOperator
	}
	if err := command.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	if command.IssuedAt.IsZero() {
		command.IssuedAt = s.env.Clock.Now()
	}
	select {
	case s.queue <- command:
		return nil
	default:
		return ErrQueueFull
	}
}

// Status is a snapshot of a session.
type Status struct {
	SessionID       string       `json:"session_id"`
	Role            Role         `json:"role"`
	SharedFolder    string       `json:"shared_folder"`
	Target          string       `json:"target,omitempty"`
	RemoteControl   bool         `json:"remote_control"`
	Running         bool         `json:"running"`
	Error           string       `json:"error,omitempty"`
	CaptureLatency  Latency      `json:"capture_latency"`
	DisplayLatency  Latency      `json:"display_latency"`
	FramesDisplayed uint64       `json:"frames_displayed"`
	QueuedCommands  int          `json:"queued_commands"`
	Loops           []LoopStatus `json:"loops"`
}

// Status returns the current state of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		SessionID:      s.id,
		Role:           s.config.Role,
		SharedFolder:   s.env.Storage.Dir(),
		RemoteControl:  s.config.RemoteControl,
		Running:        s.running,
		CaptureLatency: s.captureLatency.Snapshot(),
		DisplayLatency: s.displayLatency.Snapshot(),
		QueuedCommands: len(s.queue),
	}
	if s.config.Role == RoleClient {
		status.Target = s.config.Target.String()
	}
	if s.lastErr != nil {
		status.Error = s.lastErr.Error()
	}
	if s.watch != nil {
		status.FramesDisplayed = s.watch.displayed.Load()
	}
	for _, loop := range s.loops {
		status.Loops = append(status.Loops, loop.Status())
	}
	return status
}
