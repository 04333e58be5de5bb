//go:build unix

package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func testEngine(timeout time.Duration) *Engine {
	e := NewEngine()
	e.Timeout = timeout
	e.KillGrace = 500 * time.Millisecond
	return e
}

func TestExecuteEcho(t *testing.T) {
	res, err := testEngine(2*time.Second).Execute(context.Background(), "echo hello")
	require.NoError(t, err)

	assert.Equal(t, "hello\n", res.Output)
	assert.Equal(t, 0, res.ExitStatus)
	assert.False(t, res.TimedOut)
	assert.False(t, res.Signaled)
	assert.Equal(t, "echo hello", res.Command)
}

func TestExecuteExitStatus(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		wantOutput string
		wantStatus int
	}{
		{"false", "false", "", 1},
		{"explicit exit", "echo bye; exit 3", "bye\n", 3},
		{"command not found", "/nonexistent/utility -h", "", 127},
		{"multi-line output", "printf 'a\\nb\\n'", "a\nb\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := testEngine(2*time.Second).Execute(context.Background(), tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutput, res.Output)
			assert.Equal(t, tt.wantStatus, res.ExitStatus)
			assert.False(t, res.TimedOut)
		})
	}
}

func TestExecuteTimeoutTerminatesChild(t *testing.T) {
	start := time.Now()
	res, err := testEngine(200*time.Millisecond).Execute(context.Background(), "sleep 10")
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Less(t, elapsed, 5*time.Second, "must not wait for sleep to finish")
	assert.True(t, res.TimedOut)
	assert.True(t, res.Signaled)
	assert.Equal(t, 128+int(unix.SIGTERM), res.ExitStatus)
}

func TestExecuteOutputThenBlock(t *testing.T) {
	start := time.Now()
	res, err := testEngine(300*time.Millisecond).Execute(context.Background(), "echo 'Password:'; sleep 10")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, "Password:\n", res.Output)
	assert.True(t, res.TimedOut)
	assert.True(t, res.Signaled)
}

func TestExecuteEscalatesToKill(t *testing.T) {
	start := time.Now()
	res, err := testEngine(100*time.Millisecond).Execute(context.Background(), "trap '' TERM; sleep 10")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, res.Signaled)
	assert.Equal(t, 128+int(unix.SIGKILL), res.ExitStatus)
}

func TestExecuteStderr(t *testing.T) {
	e := testEngine(2 * time.Second)
	res, err := e.Execute(context.Background(), "echo out; echo err 1>&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Output, "stderr is not captured")

	var stderr bytes.Buffer
	e.Stderr = &stderr
	res, err = e.Execute(context.Background(), "echo out; echo err 1>&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Output)
	assert.Equal(t, "err\n", stderr.String())
}

func TestExecuteEnvironment(t *testing.T) {
	t.Setenv("SMOKEGEN_PARENT_ONLY", "leaked")

	e := testEngine(2 * time.Second)
	res, err := e.Execute(context.Background(), `echo "[$SMOKEGEN_PARENT_ONLY]"`)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", res.Output)

	e.Env = []string{DefaultPath, "FOO=bar"}
	res, err = e.Execute(context.Background(), `echo "$FOO"`)
	require.NoError(t, err)
	assert.Equal(t, "bar\n", res.Output)
}

func TestExecuteSpawnFailure(t *testing.T) {
	e := testEngine(time.Second)
	e.Shell = "/nonexistent/shell"

	res, err := e.Execute(context.Background(), "echo hello")
	require.Error(t, err)
	assert.Nil(t, res)

	var se *SetupError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "spawn", se.Op)
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "spawn:")
}

func TestExecuteCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testEngine(time.Second).Execute(ctx, "echo hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteContextDeadlineShortensWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := testEngine(30*time.Second).Execute(ctx, "sleep 10")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, res.TimedOut)
}

func TestExecuteReapsChild(t *testing.T) {
	commands := []string{"echo hello", "false", "sleep 10"}
	for _, command := range commands {
		t.Run(command, func(t *testing.T) {
			res, err := testEngine(200*time.Millisecond).Execute(context.Background(), command)
			require.NoError(t, err)
			require.NotZero(t, res.PID)

			err = unix.Kill(res.PID, 0)
			assert.ErrorIs(t, err, unix.ESRCH, "child must be reaped")
		})
	}
}

func TestExecuteReleasesDescriptors(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("descriptor count uses /proc")
	}
	e := testEngine(200 * time.Millisecond)

	// The first pipe initialises the runtime poller.
	_, err := e.Execute(context.Background(), "true")
	require.NoError(t, err)

	before := openDescriptors(t)
	for _, command := range []string{"echo hello", "false", "sleep 10", "echo x; sleep 10"} {
		_, err := e.Execute(context.Background(), command)
		require.NoError(t, err)
	}
	assert.Equal(t, before, openDescriptors(t))
}

func openDescriptors(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	return len(entries)
}

func TestPollReadableClosedDescriptor(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	fd := int(r.Fd())
	require.NoError(t, r.Close())
	require.NoError(t, w.Close())

	_, _, err = pollReadable(fd, -1, 10*time.Millisecond)
	assert.Error(t, err)
}

func TestPollReadableTimeout(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ready, woken, err := waitReadable(r, nil, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.False(t, woken)

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	ready, woken, err = waitReadable(r, nil, time.Second)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.False(t, woken)
}

func TestWaitReadableWake(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	wr, ww, err := os.Pipe()
	require.NoError(t, err)
	defer wr.Close()

	require.NoError(t, ww.Close())
	start := time.Now()
	ready, woken, err := waitReadable(r, wr, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.True(t, woken)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecuteCancelWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	res, err := testEngine(10*time.Second).Execute(ctx, "sleep 30")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecuteCancelWhileDraining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	res, err := testEngine(10*time.Second).Execute(ctx, "echo started; sleep 30")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecuteCancelReleasesDescriptors(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("descriptor count uses /proc")
	}
	_, err := testEngine(200*time.Millisecond).Execute(context.Background(), "true")
	require.NoError(t, err)

	before := openDescriptors(t)
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)
		_, err := testEngine(10*time.Second).Execute(ctx, "sleep 30")
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, before, openDescriptors(t))
}

func TestExitStatusNil(t *testing.T) {
	status, signaled := exitStatus(nil)
	assert.Equal(t, -1, status)
	assert.False(t, signaled)
}

func TestEngineDefaults(t *testing.T) {
	e := &Engine{}
	assert.Equal(t, DefaultShell, e.shell())
	assert.Equal(t, DefaultTimeout, e.timeout())
	assert.Equal(t, DefaultKillGrace, e.killGrace())
	assert.Equal(t, []string{DefaultPath}, e.env())
}
