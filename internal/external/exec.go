package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/dunamismax/pageflow/internal/domain"
)

const (
	maxCapturedOutput = 16 * 1024
	waitDelay         = 5 * time.Second
)

// errTimedOut marks a tool that ran past its own timeout, as opposed to a
// caller cancelling the request.
var errTimedOut = errors.New("timed out")

// run executes bin with a hard timeout and returns its combined output.
func run(ctx context.Context, timeout time.Duration, bin string, args ...string) (string, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var output limitedBuffer
	cmd := exec.CommandContext(runCtx, bin, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = waitDelay
	isolate(cmd)

	err := cmd.Run()
	if err == nil {
		return output.String(), nil
	}
	if ctx.Err() != nil {
		return output.String(), ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return output.String(), fmt.Errorf("%w after %s", errTimedOut, timeout)
	}
	return output.String(), err
}

// toolFailure converts a run error into the domain taxonomy.
func toolFailure(tool string, kind, timeoutKind error, err error, output string) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return domain.NewCapabilityError(tool)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, errTimedOut):
		return &domain.ToolError{Tool: tool, Kind: timeoutKind, Err: err, Output: output}
	default:
		return &domain.ToolError{Tool: tool, Kind: kind, Err: err, Output: output}
	}
}

type limitedBuffer struct {
	buf bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := maxCapturedOutput - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
