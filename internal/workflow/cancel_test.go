package workflow

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"
)

const interruptHelperEnv = "ARISTA_INTERRUPT_HELPER"

func TestCancelTokenIsIdempotent(t *testing.T) {
	token := NewCancelToken()
	if token.Cancelled() {
		t.Fatal("fresh token reports cancelled")
	}
	token.Cancel()
	token.Cancel()
	if !token.Cancelled() {
		t.Fatal("token not cancelled")
	}
	select {
	case <-token.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestInterruptHandlerCancelsOnFirstSignal(t *testing.T) {
	token := NewCancelToken()
	stop := InterruptHandler(token, nil)
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("kill: %v", err)
	}
	select {
	case <-token.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("token not cancelled after SIGINT")
	}
}

func TestInterruptHandlerStopWithoutSignal(t *testing.T) {
	token := NewCancelToken()
	stop := InterruptHandler(token, nil)
	stop()
	if token.Cancelled() {
		t.Fatal("stopping the handler must not cancel the token")
	}
}

// runInterruptHelper is the child side of TestSecondInterruptTerminatesProcess.
// It only reaches "graceful" if the second interrupt fails to kill it.
func runInterruptHelper() {
	token := NewCancelToken()
	stop := InterruptHandler(token, nil)
	defer stop()
	fmt.Println("ready")
	select {
	case <-token.Done():
	case <-time.After(10 * time.Second):
		os.Exit(3)
	}
	fmt.Println("cancelled")
	time.Sleep(10 * time.Second)
	fmt.Println("graceful")
	os.Exit(0)
}

func TestSecondInterruptTerminatesProcess(t *testing.T) {
	if os.Getenv(interruptHelperEnv) == "1" {
		runInterruptHelper()
		return
	}
	cmd := exec.Command(os.Args[0], "-test.run=^TestSecondInterruptTerminatesProcess$")
	cmd.Env = append(os.Environ(), interruptHelperEnv+"=1")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("stdout pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start helper: %v", err)
	}
	lines := bufio.NewScanner(stdout)
	await := func(want string) {
		t.Helper()
		for lines.Scan() {
			if strings.TrimSpace(lines.Text()) == want {
				return
			}
		}
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		t.Fatalf("helper exited before printing %q", want)
	}

	await("ready")
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("first interrupt: %v", err)
	}
	await("cancelled")
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("second interrupt: %v", err)
	}

	var rest strings.Builder
	for lines.Scan() {
		rest.WriteString(lines.Text())
		rest.WriteByte('\n')
	}
	err = cmd.Wait()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("helper exit = %v, want termination by signal", err)
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() || status.Signal() != syscall.SIGINT {
		t.Fatalf("helper status = %v, want killed by SIGINT", exitErr)
	}
	if strings.Contains(rest.String(), "graceful") {
		t.Fatalf("helper continued after the second interrupt:\n%s", rest.String())
	}
}
