package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"arista/internal/logging"
)

// ErrForcedExit is returned by Run when a pass could not be stopped
// gracefully after cancellation and had to be torn down.
var ErrForcedExit = errors.New("forced exit after failed graceful stop")

// CancelToken is a one-shot cancellation flag safe for use from any goroutine.
type CancelToken struct {
	flag atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewCancelToken returns an unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel sets the token. Later calls are no-ops.
func (t *CancelToken) Cancel() {
	t.once.Do(func() {
		t.flag.Store(true)
		close(t.done)
	})
}

// Cancelled reports whether Cancel was called.
func (t *CancelToken) Cancelled() bool { return t.flag.Load() }

// Done is closed once the token is cancelled.
func (t *CancelToken) Done() <-chan struct{} { return t.done }

// InterruptHandler cancels token on the first SIGINT or SIGTERM and then
// restores the default signal disposition, so a second interrupt terminates
// the process immediately. The returned function stops listening.
func InterruptHandler(token *CancelToken, logger *slog.Logger) func() {
	if logger == nil {
		logger = logging.NewNop()
	}
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-signals:
			signal.Reset(os.Interrupt, syscall.SIGTERM)
			logger.Warn("interrupt received; finishing current job",
				logging.String("signal", sig.String()),
				logging.String(logging.FieldEventType, "interrupt"),
				logging.String(logging.FieldErrorHint, "interrupt again to exit immediately"),
			)
			token.Cancel()
		case <-ctx.Done():
			signal.Stop(signals)
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
