package workflow

import (
	"log/slog"
	"sync"
	"time"

	"arista/internal/engine"
	"arista/internal/job"
	"arista/internal/logging"
	"arista/internal/services"
)

const (
	DefaultStatusInterval = 500 * time.Millisecond
	DefaultCancelInterval = 50 * time.Millisecond
	DefaultStallTimeout   = 5 * time.Second

	endedEventWait = time.Second
)

// Options wires a Manager to its collaborators.
type Options struct {
	Factory   engine.Factory
	Inspector Inspector
	Plan      job.PlanOptions

	StatusInterval time.Duration
	CancelInterval time.Duration
	// StallTimeout ends a pass whose progress stops moving. Zero disables it;
	// a negative value selects DefaultStallTimeout.
	StallTimeout time.Duration

	Token    *CancelToken
	Recorder Recorder
	Metrics  Metrics
	Logger   *slog.Logger
}

// Manager runs queued jobs one at a time in submission order.
type Manager struct {
	factory        engine.Factory
	inspector      Inspector
	plan           job.PlanOptions
	statusInterval time.Duration
	cancelInterval time.Duration
	stallTimeout   time.Duration
	token          *CancelToken
	recorder       Recorder
	metrics        Metrics
	logger         *slog.Logger

	mu       sync.Mutex
	queue    []*job.Job
	handlers map[EventKind][]Handler
	running  bool

	// exitAfterJob is owned by the run goroutine.
	exitAfterJob bool
}

// NewManager validates opts and returns an idle manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Factory == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "new manager", "engine factory is required", nil)
	}
	if opts.Inspector == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "new manager", "source inspector is required", nil)
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if opts.CancelInterval <= 0 {
		opts.CancelInterval = DefaultCancelInterval
	}
	if opts.StallTimeout < 0 {
		opts.StallTimeout = DefaultStallTimeout
	}
	if opts.Token == nil {
		opts.Token = NewCancelToken()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		factory:        opts.Factory,
		inspector:      opts.Inspector,
		plan:           opts.Plan,
		statusInterval: opts.StatusInterval,
		cancelInterval: opts.CancelInterval,
		stallTimeout:   opts.StallTimeout,
		token:          opts.Token,
		recorder:       opts.Recorder,
		metrics:        opts.Metrics,
		logger:         logging.NewComponentLogger(logger, "workflow"),
		handlers:       make(map[EventKind][]Handler),
	}, nil
}

// Submit validates req and appends a pending job to the queue.
func (m *Manager) Submit(req job.Request) (*job.Job, error) {
	j, err := job.New(req)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.queue = append(m.queue, j)
	depth := len(m.queue)
	m.mu.Unlock()
	m.logger.Debug("job queued",
		logging.String(logging.FieldJobID, j.ID),
		logging.String("input", req.Input),
		logging.String("preset", req.Preset.Label()),
		logging.Int("queue_depth", depth),
	)
	return j, nil
}

// On subscribes handler to events of kind. Handlers run in subscription
// order on the goroutine that called Run.
func (m *Manager) On(kind EventKind, handler Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[kind] = append(m.handlers[kind], handler)
}

// Cancel requests a graceful stop of the active job and prevents queued jobs
// from starting.
func (m *Manager) Cancel() { m.token.Cancel() }

// Token returns the manager's cancellation token.
func (m *Manager) Token() *CancelToken { return m.token }

// Pending returns the number of queued jobs, including the active one.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Manager) head() (*job.Job, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, 0
	}
	return m.queue[0], len(m.queue) - 1
}

func (m *Manager) pop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) > 0 {
		m.queue[0] = nil
		m.queue = m.queue[1:]
	}
}

func (m *Manager) remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return max(len(m.queue)-1, 0)
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	handlers := append([]Handler(nil), m.handlers[ev.Kind]...)
	m.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}
