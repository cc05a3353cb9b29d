package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/rs/zerolog/log"
)

const (
	DefaultWatchdogTimeout = 20 * time.Second
	DefaultCooldown        = 5 * time.Second
	DefaultPollInterval    = 5 * time.Second
)

var (
	restartsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hygrometer_scanner_watchdog_restarts_total",
		Help: "Discovery sessions restarted because no reading was decoded in time.",
	})
	sessionsStartedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hygrometer_scanner_sessions_started_total",
		Help: "Discovery sessions started.",
	})
	startFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hygrometer_scanner_session_start_failures_total",
		Help: "Attempts to start a discovery session that failed.",
	})
	sessionEndsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hygrometer_scanner_session_ends_total",
		Help: "Discovery sessions whose notification stream ended on its own.",
	})
)

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		restartsCounter,
		sessionsStartedCounter,
		startFailuresCounter,
		sessionEndsCounter,
	)
}

// Session is a running discovery. Events must be closed once the session is over, including
// after Stop.
type Session interface {
	Events() <-chan device.Event
	Stop()
}

type Radio interface {
	Discover(ctx context.Context) (Session, error)
}

type RadioFunc func(ctx context.Context) (Session, error)

func (f RadioFunc) Discover(ctx context.Context) (Session, error) {
	return f(ctx)
}

type Options struct {
	// A session is restarted when nothing was decoded for longer than this.
	WatchdogTimeout time.Duration
	// Pause between a session ending (or failing to start) and the next attempt.
	Cooldown time.Duration
	// How often the watchdog is checked.
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.WatchdogTimeout <= 0 {
		o.WatchdogTimeout = DefaultWatchdogTimeout
	}

	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}

	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}

	return o
}

// Supervisor keeps a discovery session running, replacing it whenever it goes silent or
// ends.
type Supervisor struct {
	// Forward receives every session notification, in order. It must not block.
	Forward func(device.Event)

	opts     Options
	radio    Radio
	watchdog *Watchdog
	restarts atomic.Uint64
	state    atomic.Uint32
	started  atomic.Bool

	now  func() time.Time
	tick func(d time.Duration) (<-chan time.Time, func())
	wait func(ctx context.Context, d time.Duration) error
}

func New(radio Radio, opts Options) *Supervisor {
	return &Supervisor{
		opts:     opts.withDefaults(),
		radio:    radio,
		watchdog: NewWatchdog(time.Now),
		now:      time.Now,
		tick:     newTicker,
		wait:     sleep,
	}
}

// Watchdog returns the decode tracker consulted by the supervisor.
func (s *Supervisor) Watchdog() *Watchdog {
	return s.watchdog
}

// Restarts returns the number of watchdog-triggered restarts. It wraps around on overflow.
func (s *Supervisor) Restarts() uint64 {
	return s.restarts.Load()
}

func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	if prev := State(s.state.Swap(uint32(st))); prev != st {
		log.Trace().Stringer("From", prev).Stringer("To", st).Msg("Supervisor state change")
	}
}

// Run supervises discovery until ctx is done, then returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		panic("attempted to call supervisor.Supervisor.Run() twice")
	}

	log.Info().
		Dur("WatchdogTimeoutSec", s.opts.WatchdogTimeout).
		Dur("CooldownSec", s.opts.Cooldown).
		Dur("PollIntervalSec", s.opts.PollInterval).
		Msg("Starting discovery supervisor")

	for {
		s.setState(StateStarting)

		session, err := s.radio.Discover(ctx)

		switch {
		case ctx.Err() != nil:
			if err == nil {
				s.stopSession(session)
			}

			return s.shutdown(ctx)

		case err != nil:
			startFailuresCounter.Inc()

			log.Error().
				Err(err).
				Dur("CooldownSec", s.opts.Cooldown).
				Msg("Failed to start discovery session, retrying after cooldown")

		default:
			sessionsStartedCounter.Inc()
			log.Info().Msg("Discovery session started")

			if err := s.supervise(ctx, session); err != nil {
				return s.shutdown(ctx)
			}
		}

		s.setState(StateCooldown)

		if err := s.wait(ctx, s.opts.Cooldown); err != nil {
			return s.shutdown(ctx)
		}
	}
}

// supervise forwards the session's notifications until it ends or the watchdog fires. It
// only returns an error if ctx is done.
func (s *Supervisor) supervise(ctx context.Context, session Session) error {
	s.setState(StateScanning)

	sessionStart := s.now()
	ticks, stop := s.tick(s.opts.PollInterval)
	defer stop()

	events := session.Events()

	for {
		select {
		case <-ctx.Done():
			s.stopSession(session)
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				s.setState(StateEndedUnexpectedly)
				sessionEndsCounter.Inc()

				log.Warn().
					Dur("CooldownSec", s.opts.Cooldown).
					Msg("Discovery session ended unexpectedly, restarting after cooldown")

				return nil
			}

			s.forward(ev)

		case <-ticks:
			elapsed := s.watchdog.Since(sessionStart)

			if elapsed <= s.opts.WatchdogTimeout {
				log.Trace().Dur("SinceLastDecodeSec", elapsed).Msg("Watchdog check passed")
				continue
			}

			s.setState(StateRestarting)

			n := s.restarts.Add(1)
			restartsCounter.Inc()

			log.Warn().
				Dur("SinceLastDecodeSec", elapsed).
				Dur("WatchdogTimeoutSec", s.opts.WatchdogTimeout).
				Uint64("Restarts", n).
				Msg("No reading decoded in time, restarting discovery session")

			s.stopSession(session)

			return nil
		}
	}
}

// stopSession stops the session and forwards whatever it still reports until its stream is
// closed.
func (s *Supervisor) stopSession(session Session) {
	session.Stop()

	for ev := range session.Events() {
		s.forward(ev)
	}
}

func (s *Supervisor) forward(ev device.Event) {
	log.Trace().Stringer("Event", ev).Msg("Forwarding device event")

	if s.Forward != nil {
		s.Forward(ev)
	}
}

func (s *Supervisor) shutdown(ctx context.Context) error {
	s.setState(StateStopped)
	log.Info().Msg("Discovery supervisor is shutting down")

	return ctx.Err()
}

func newTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)

	return t.C, t.Stop
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
