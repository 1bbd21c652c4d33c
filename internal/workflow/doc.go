// Package workflow runs queued transcode jobs one at a time.
//
// The Manager pops the head of a FIFO queue, drives the job through its
// passes with a fresh engine adapter for each, and removes it once it is
// terminal. While a pass runs, the run goroutine multiplexes the adapter's
// events with two tickers: the progress reporter, which polls engine status
// and publishes job-progress events, and the cancel checker, which turns a
// cancelled CancelToken into a single graceful stop request. If the engine
// cannot stop gracefully the pass is torn down and Run returns ErrForcedExit.
//
// Observers subscribe per event kind with On. Handlers run synchronously on
// the run goroutine in subscription order. The run ends when the queue is
// empty; jobs that never started because of cancellation are reported as
// skipped in the Summary.
package workflow
