//go:build unix

// Package executor runs shell commands under a bounded-time harness and
// reports what they printed and how they exited.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/harrison/smokegen/internal/models"
)

const (
	// DefaultShell interprets every command.
	DefaultShell = "/bin/sh"
	// DefaultTimeout is how long a utility gets to produce its output.
	DefaultTimeout = 2 * time.Second
	// DefaultKillGrace is how long a terminated process group gets to exit
	// before it is killed outright.
	DefaultKillGrace = time.Second
	// DefaultPath is the only variable the child sees unless Env says otherwise.
	DefaultPath = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
)

// Logger receives diagnostics from the engine. Implementations must be safe
// to call from the goroutine running Execute.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Engine executes one command at a time through a shell. Each child runs in
// its own process group, gets Timeout to write its output, and is always sent
// SIGTERM afterwards: utilities that block on interactive input never exit on
// their own.
type Engine struct {
	// Shell is the interpreter invoked as "<Shell> -c <command>".
	Shell string

	// Timeout bounds the wait for output. A context deadline that comes
	// earlier takes precedence; cancellation ends the wait at once.
	Timeout time.Duration

	// KillGrace bounds the wait for the process group to exit after SIGTERM.
	// A group still alive after it is sent SIGKILL.
	KillGrace time.Duration

	// Env is the complete environment of the child. Nil means DefaultPath only.
	Env []string

	// Stderr receives the child's standard error. Nil discards it.
	Stderr io.Writer

	// Logger can be nil for silent operation.
	Logger Logger
}

// NewEngine creates an Engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Shell:     DefaultShell,
		Timeout:   DefaultTimeout,
		KillGrace: DefaultKillGrace,
	}
}

// child is the state owned by a single Execute call.
type child struct {
	cmd  *exec.Cmd
	pgid int
	out  *os.File
}

// Execute runs command and returns its captured stdout and exit status.
//
// A non-zero exit, empty output or a child that had to be terminated are
// reported in the result. Errors are *SetupError (pipe or process creation
// failed), *EnvironmentError (waiting for output failed) or *ExecutionError
// (draining output failed). The pipe is closed and the child reaped on every
// return path.
func (e *Engine) Execute(ctx context.Context, command string) (*models.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	deadline := start.Add(e.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &SetupError{Op: "pipe", Command: command, Err: err}
	}

	cmd := exec.Command(e.shell(), "-c", command)
	cmd.Stdout = pw
	cmd.Stderr = e.Stderr
	cmd.Env = e.env()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &SetupError{Op: "spawn", Command: command, Err: err}
	}
	// Only the child writes; EOF arrives once every writer in the group is gone.
	pw.Close()

	c := &child{cmd: cmd, pgid: cmd.Process.Pid, out: pr}
	defer c.out.Close()

	wake, stopWatch, err := watchCancel(ctx, pr)
	if err != nil {
		e.terminate(c)
		e.reap(c)
		return nil, &SetupError{Op: "pipe", Command: command, Err: err}
	}
	defer stopWatch()

	ready, woken, err := waitReadable(pr, wake, time.Until(deadline))
	if err != nil {
		e.terminate(c)
		e.reap(c)
		return nil, &EnvironmentError{Op: "poll", Command: command, Err: err}
	}
	if woken {
		return nil, e.abandon(ctx, c)
	}

	var output bytes.Buffer
	timedOut := !ready
	if ready {
		if err := drain(ctx, &output, pr, deadline); err != nil {
			if !errors.Is(err, os.ErrDeadlineExceeded) {
				c.out.Close()
				e.terminate(c)
				e.reap(c)
				return nil, &ExecutionError{Command: command, Output: output.String(), Err: err}
			}
			if canceled(ctx) {
				return nil, e.abandon(ctx, c)
			}
			timedOut = true
		}
	}

	e.terminate(c)
	if timedOut {
		// Keep whatever the group flushed while dying. A member that still
		// holds the pipe after the grace period ignored SIGTERM.
		err := drain(ctx, &output, pr, time.Now().Add(e.killGrace()))
		if errors.Is(err, os.ErrDeadlineExceeded) {
			e.kill(c)
		}
	}
	c.out.Close()

	state := e.reap(c)
	status, signaled := exitStatus(state)

	result := &models.ExecutionResult{
		Command:    command,
		Output:     output.String(),
		ExitStatus: status,
		Signaled:   signaled,
		TimedOut:   timedOut,
		PID:        c.pgid,
		Duration:   time.Since(start),
	}
	e.debugf("%q exited with status %d after %v (timed out: %v)",
		command, status, result.Duration.Round(time.Millisecond), timedOut)

	return result, nil
}

// abandon stops a child whose context was canceled and reports why.
func (e *Engine) abandon(ctx context.Context, c *child) error {
	e.debugf("canceled, terminating process group %d", c.pgid)
	c.out.Close()
	e.terminate(c)
	e.reap(c)
	return ctx.Err()
}

// canceled reports whether ctx was canceled rather than reaching its
// deadline. An expired deadline is handled like Timeout.
func canceled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

// watchCancel returns a descriptor that becomes readable once ctx is
// canceled. Cancellation also expires the read deadline of out, so a drain
// in progress returns. stop must be called when the child is finished with.
func watchCancel(ctx context.Context, out *os.File) (wake *os.File, stop func(), err error) {
	wr, ww, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	var closeOnce sync.Once
	closeWriter := func() { closeOnce.Do(func() { ww.Close() }) }

	stopAfter := context.AfterFunc(ctx, func() {
		if !canceled(ctx) {
			return
		}
		closeWriter()
		_ = out.SetReadDeadline(time.Now())
	})
	return wr, func() {
		stopAfter()
		closeWriter()
		wr.Close()
	}, nil
}

// terminate sends SIGTERM to the child's process group. The child may have
// exited already, so failures are only logged.
func (e *Engine) terminate(c *child) {
	err := unix.Kill(-c.pgid, unix.SIGTERM)
	switch {
	case err == nil:
	case errors.Is(err, unix.ESRCH):
		e.debugf("process group %d already gone", c.pgid)
	default:
		e.warnf("kill process group %d: %v", c.pgid, err)
	}
}

// kill sends SIGKILL to the child's process group.
func (e *Engine) kill(c *child) {
	if err := unix.Kill(-c.pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		e.warnf("kill process group %d: %v", c.pgid, err)
	}
}

// reap waits for the shell to exit, escalating to SIGKILL after KillGrace.
func (e *Engine) reap(c *child) *os.ProcessState {
	done := make(chan struct{})
	go func() {
		// The exit status is decoded from ProcessState; the error only
		// restates it.
		_ = c.cmd.Wait()
		close(done)
	}()

	timer := time.NewTimer(e.killGrace())
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		e.warnf("process group %d survived SIGTERM, sending SIGKILL", c.pgid)
		e.kill(c)
		<-done
	}
	return c.cmd.ProcessState
}

// drain reads r into buf until EOF or until deadline passes. Cancellation of
// ctx counts as a passed deadline.
func drain(ctx context.Context, buf *bytes.Buffer, r *os.File, deadline time.Time) error {
	if err := r.SetReadDeadline(deadline); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return err
	}
	// watchCancel may have expired the deadline before it was set above.
	if canceled(ctx) {
		_ = r.SetReadDeadline(time.Now())
	}
	_, err := io.Copy(buf, r)
	return err
}

// waitReadable blocks until a read from f would not block, wake becomes
// readable, or budget runs out. ready is false on timeout; woken reports
// that wake fired first. A nil wake is never waited on.
func waitReadable(f, wake *os.File, budget time.Duration) (ready, woken bool, err error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return false, false, err
	}

	wakeFd := -1
	var pollErr error
	poll := func(fd uintptr) {
		ready, woken, pollErr = pollReadable(int(fd), wakeFd, budget)
	}
	if wake != nil {
		wc, err := wake.SyscallConn()
		if err != nil {
			return false, false, err
		}
		inner := poll
		poll = func(fd uintptr) {
			cerr := wc.Control(func(wfd uintptr) {
				wakeFd = int(wfd)
				inner(fd)
			})
			if cerr != nil {
				pollErr = cerr
			}
		}
	}

	if err := rc.Control(poll); err != nil {
		return false, false, err
	}
	return ready, woken, pollErr
}

// pollReadable polls fd, and wakeFd unless it is negative.
func pollReadable(fd, wakeFd int, budget time.Duration) (ready, woken bool, err error) {
	deadline := time.Now().Add(budget)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		if wakeFd >= 0 {
			fds = append(fds, unix.PollFd{Fd: int32(wakeFd), Events: unix.POLLIN})
		}
		n, err := unix.Poll(fds, int((remaining+time.Millisecond-1)/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, false, err
		}
		if n == 0 {
			return false, false, nil
		}
		if len(fds) > 1 && fds[1].Revents != 0 {
			return false, true, nil
		}
		if fds[0].Revents&unix.POLLNVAL != 0 {
			return false, false, fmt.Errorf("descriptor %d: %w", fd, unix.EBADF)
		}
		// POLLIN, POLLHUP and POLLERR all mean the next read returns.
		return true, false, nil
	}
}

// exitStatus decodes a wait status into a plain exit code. Signal deaths are
// reported the way shells report them, as 128+signal.
func exitStatus(state *os.ProcessState) (int, bool) {
	if state == nil {
		return -1, false
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), true
	}
	return state.ExitCode(), false
}

func (e *Engine) shell() string {
	if e.Shell == "" {
		return DefaultShell
	}
	return e.Shell
}

func (e *Engine) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func (e *Engine) killGrace() time.Duration {
	if e.KillGrace <= 0 {
		return DefaultKillGrace
	}
	return e.KillGrace
}

func (e *Engine) env() []string {
	if e.Env == nil {
		return []string{DefaultPath}
	}
	return e.Env
}

func (e *Engine) debugf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Debugf(format, args...)
	}
}

func (e *Engine) warnf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Warnf(format, args...)
	}
}
