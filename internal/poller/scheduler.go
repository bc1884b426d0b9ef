// internal/poller/scheduler.go
package poller

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github-activity-tracker/internal/activity"
	"github-activity-tracker/internal/model"
)

// DefaultInterval is the pause between two cycles.
const DefaultInterval = 100 * time.Second

// State is the lifecycle state of a Scheduler.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SourceFactory builds a Source bound to one credential ("" = anonymous).
type SourceFactory func(credential string) (activity.Source, error)

// Options configures a Scheduler.
type Options struct {
	Interval      time.Duration
	ReferenceDate time.Time
	Accounts      []string
	Credential    string
	Concurrency   int
	NewSource     SourceFactory
}

// Scheduler drives the activity aggregation on a fixed interval and owns the
// published snapshot. The tracked-account set only ever grows.
type Scheduler struct {
	gate       *activity.RateLimitGate
	aggregator *activity.Aggregator
	newSource  SourceFactory
	interval   time.Duration
	logger     *slog.Logger

	mu          sync.Mutex
	accounts    []string
	tracked     map[string]struct{}
	credential  string
	state       State
	parent      context.Context
	cancel      context.CancelFunc
	generation  uint64
	subscribers map[int]chan model.Snapshot
	nextSubID   int

	// cycleMu keeps cycles from overlapping, including the tail of a
	// cycle from a loop that was restarted.
	cycleMu  sync.Mutex
	snapshot atomic.Pointer[model.Snapshot]
}

// New creates a Scheduler in the Idle state. Nothing runs until Start.
func New(opts Options, logger *slog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	s := &Scheduler{
		gate:        activity.NewRateLimitGate(logger),
		aggregator:  activity.NewAggregator(opts.ReferenceDate, opts.Concurrency, logger),
		newSource:   opts.NewSource,
		interval:    opts.Interval,
		logger:      logger,
		tracked:     make(map[string]struct{}),
		credential:  opts.Credential,
		subscribers: make(map[int]chan model.Snapshot),
	}
	s.snapshot.Store(&model.Snapshot{
		Result: model.CycleResult{Activities: []model.ActivityRecord{}, Errors: map[string]string{}},
	})
	s.addLocked(opts.Accounts)
	return s
}

// Start binds the scheduler to ctx. With tracked accounts it runs a cycle
// right away and then one per interval; otherwise it waits in Idle until
// accounts are added. Cancelling ctx stops it. Start does not block.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return
	}
	s.parent = ctx
	if len(s.accounts) == 0 {
		s.state = Idle
		s.logger.Info("Scheduler idle, no accounts tracked")
		return
	}
	s.launchLocked()
}

// Stop prevents any further cycle. A cycle already in flight is allowed to
// finish but its result is discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.state = Stopped
	s.logger.Info("Scheduler stopped")
}

// AddAccounts tracks new account handles and returns those that were not
// tracked yet, in the given order. Blank handles are ignored.
func (s *Scheduler) AddAccounts(accounts []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := s.addLocked(accounts)
	if len(added) > 0 {
		s.logger.Info("Accounts added", "accounts", added, "tracked", len(s.accounts))
	}
	if len(added) > 0 && s.state == Idle && s.parent != nil && s.parent.Err() == nil {
		s.launchLocked()
	}
	return added
}

func (s *Scheduler) addLocked(accounts []string) []string {
	var added []string
	for _, a := range accounts {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := s.tracked[a]; ok {
			continue
		}
		s.tracked[a] = struct{}{}
		s.accounts = append(s.accounts, a)
		added = append(added, a)
	}
	return added
}

// Accounts returns the tracked handles in insertion order.
func (s *Scheduler) Accounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.accounts...)
}

// SetCredential replaces the credential; "" switches to anonymous access.
// A running scheduler restarts its loop so the next cycle, which starts
// immediately, uses the new credential.
func (s *Scheduler) SetCredential(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == s.credential {
		return
	}
	s.credential = token
	s.logger.Info("Credential changed", "authenticated", token != "")
	if s.state == Running {
		s.cancel()
		s.launchLocked()
	}
}

// HasCredential reports whether requests are authenticated.
func (s *Scheduler) HasCredential() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential != ""
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the latest published snapshot. Its maps and slices are
// shared and must not be modified.
func (s *Scheduler) Snapshot() model.Snapshot {
	return *s.snapshot.Load()
}

// Subscribe returns a channel that always holds the most recent snapshot
// not yet received, and a function that closes it.
func (s *Scheduler) Subscribe() (<-chan model.Snapshot, func()) {
	ch := make(chan model.Snapshot, 1)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
}

// RunOnce runs a single cycle outside the loop and publishes its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) model.Snapshot {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	accounts, credential := s.cycleInputs()
	return s.publish(0, true, s.cycle(ctx, accounts, credential))
}

// launchLocked starts a new loop generation. Callers hold s.mu.
func (s *Scheduler) launchLocked() {
	s.generation++
	gen := s.generation
	loopCtx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	s.state = Running
	go s.loop(loopCtx, s.parent, gen)
}

// loop runs until loopCtx is done. Cycles use cycleCtx so that stopping
// the loop does not abort a cycle halfway.
func (s *Scheduler) loop(loopCtx, cycleCtx context.Context, gen uint64) {
	s.logger.Info("Starting poll loop", "interval", s.interval.String(), "generation", gen)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(cycleCtx, gen) // Initial cycle

	for {
		select {
		case <-ticker.C:
			s.runCycle(cycleCtx, gen)
		case <-loopCtx.Done():
			s.loopExited(gen)
			return
		}
	}
}

func (s *Scheduler) loopExited(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation && s.state == Running {
		// Parent context went away without an explicit Stop.
		s.state = Stopped
		s.cancel = nil
		s.logger.Info("Poll loop shutting down", "reason", s.parent.Err())
	}
}

func (s *Scheduler) runCycle(ctx context.Context, gen uint64) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	if !s.isCurrent(gen) {
		return
	}
	accounts, credential := s.cycleInputs()
	s.publish(gen, false, s.cycle(ctx, accounts, credential))
}

func (s *Scheduler) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation && s.state == Running
}

func (s *Scheduler) cycleInputs() ([]string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.accounts...), s.credential
}

// cycleOutcome is either a full result or a global error; rateLimit is set
// whenever the quota check answered.
type cycleOutcome struct {
	result      *model.CycleResult
	rateLimit   *model.RateLimitStatus
	globalError string
}

func (s *Scheduler) cycle(ctx context.Context, accounts []string, credential string) cycleOutcome {
	start := time.Now()
	s.logger.Info("Starting new cycle", "accounts", len(accounts), "authenticated", credential != "")

	src, err := s.newSource(credential)
	if err != nil {
		s.logger.Error("Cycle aborted, could not build API client", "error", err)
		return cycleOutcome{globalError: err.Error()}
	}

	status, err := s.gate.Check(ctx, src)
	if err != nil {
		s.logger.Warn("Cycle aborted by rate limit gate", "error", err)
		return cycleOutcome{rateLimit: status, globalError: err.Error()}
	}

	result := s.aggregator.Aggregate(ctx, src, accounts)
	s.logger.Info("Cycle finished",
		"duration", time.Since(start).String(),
		"activities", len(result.Activities),
		"account_errors", len(result.Errors))
	return cycleOutcome{result: &result, rateLimit: status}
}

// publish swaps in the next snapshot. Unless forced, outcomes from a
// superseded or stopped loop are dropped.
func (s *Scheduler) publish(gen uint64, force bool, out cycleOutcome) model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && (gen != s.generation || s.state != Running) {
		s.logger.Debug("Discarding cycle outcome from a stale loop", "generation", gen)
		return *s.snapshot.Load()
	}

	next := *s.snapshot.Load()
	next.CompletedAt = time.Now()
	if out.rateLimit != nil {
		next.RateLimit = out.rateLimit
	}
	if out.result != nil {
		next.Result = *out.result
		next.GlobalError = ""
	} else {
		next.GlobalError = out.globalError
	}
	s.snapshot.Store(&next)

	for _, ch := range s.subscribers {
		select {
		case <-ch: // drop the stale value
		default:
		}
		ch <- next
	}
	return next
}
