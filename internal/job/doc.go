// Package job holds a transcode request and its multi-pass lifecycle.
//
// A Job moves through Pending, Running(pass), PassComplete(pass) and ends in
// Succeeded or Failed; every other transition is rejected with
// ErrInvalidTransition. The job also turns its preset and the probed source
// into one engine.PassConfig per pass. Driving the engine is left to the
// workflow package.
package job
