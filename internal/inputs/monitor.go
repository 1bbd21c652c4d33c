package inputs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"arista/internal/logging"
)

// EventKind names a device change.
type EventKind string

const (
	EventDiscFound    EventKind = "disc-found"
	EventDiscLost     EventKind = "disc-lost"
	EventCaptureFound EventKind = "capture-found"
	EventCaptureLost  EventKind = "capture-lost"
)

// Event reports a device change.
type Event struct {
	Kind  EventKind
	Input Input
}

// Monitor listens for udev netlink events about optical media and capture
// devices.
type Monitor struct {
	logger *slog.Logger
	events chan Event

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	wg      sync.WaitGroup

	// present is owned by the monitor loop.
	present map[string]bool
}

// NewMonitor returns a stopped monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "input-monitor"),
		events:  make(chan Event, 16),
		present: make(map[string]bool),
	}
}

// Events delivers device changes until the monitor stops.
func (m *Monitor) Events() <-chan Event { return m.events }

// Start connects to the udev netlink socket and begins listening.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the process may open netlink sockets"),
			logging.String(logging.FieldImpact, "device changes will not be reported"),
		)
		return fmt.Errorf("connect netlink: %w", err)
	}
	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	m.wg.Add(1)
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("input monitor started", logging.String(logging.FieldEventType, "input_monitor_started"))
	return nil
}

// Stop shuts the monitor down and waits for its loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.quit)
	m.quit = nil
	conn := m.conn
	m.conn = nil
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	if conn != nil {
		_ = conn.Close()
	}
	m.logger.Info("input monitor stopped", logging.String(logging.FieldEventType, "input_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	defer m.wg.Done()
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, matcher())
	defer close(monitorQuit)

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case uevent := <-queue:
			ev, ok := m.classify(uevent)
			if !ok {
				continue
			}
			m.logger.Info("input changed",
				logging.String("event", string(ev.Kind)),
				logging.String("device", ev.Input.Device),
				logging.String("label", ev.Input.Label),
				logging.String(logging.FieldEventType, "input_changed"),
			)
			select {
			case m.events <- ev:
			case <-ctx.Done():
				return
			case <-quit:
				return
			}
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "device changes may be missed"),
			)
		}
	}
}

// classify maps a uevent to a device change, suppressing repeats.
func (m *Monitor) classify(uevent netlink.UEvent) (Event, bool) {
	env := uevent.Env
	if env == nil {
		return Event{}, false
	}
	in, ok := fromEnv(env)
	if !ok {
		return Event{}, false
	}

	var kind EventKind
	present := false
	switch in.Kind {
	case KindDVD:
		switch {
		case uevent.Action == netlink.REMOVE, env["DISK_EJECT_REQUEST"] == "1", !in.HasMedia:
			kind = EventDiscLost
		default:
			kind = EventDiscFound
			present = true
		}
	case KindCapture:
		switch uevent.Action {
		case netlink.ADD:
			kind = EventCaptureFound
			present = true
		case netlink.REMOVE:
			kind = EventCaptureLost
		default:
			return Event{}, false
		}
	default:
		return Event{}, false
	}

	was, known := m.present[in.Device]
	if known && was == present {
		return Event{}, false
	}
	if !known && !present {
		// A removal for something never seen still matters to the caller.
		m.present[in.Device] = false
		return Event{Kind: kind, Input: in}, true
	}
	m.present[in.Device] = present
	return Event{Kind: kind, Input: in}, true
}
