package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
)

// TreeArgs returns the tree arguments for roots: full paths (-f), type
// indicators (-F), quoted names (-Q) and no summary line.
func TreeArgs(roots []string, opts Options) []string {
	args := []string{"-f", "-F", "-Q", "--noreport"}
	if opts.Hidden {
		args = append(args, "-a")
	}
	if len(opts.Exclude) > 0 {
		args = append(args, "-I", strings.Join(opts.Exclude, "|"))
	}
	args = append(args, "--")
	return append(args, roots...)
}

// TreeSource streams the output of a running tree process.
type TreeSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	lines  *lineReader
	cancel context.CancelFunc

	closeOnce sync.Once
	waitErr   error
	emitted   int
}

// StartTree starts tree for roots. The process is killed when ctx is
// canceled or the source is closed.
func StartTree(ctx context.Context, roots []string, opts Options) (*TreeSource, error) {
	command := opts.Command
	if command == "" {
		command = DefaultCommand
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, command, TreeArgs(roots, opts)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("tree stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting %s: %w", command, err)
	}

	logging.Get("listing").Debug("tree started", "command", command, "args", cmd.Args[1:], "pid", cmd.Process.Pid)

	return &TreeSource{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		lines:  newLineReader(stdout),
		cancel: cancel,
	}, nil
}

// Next returns the next line. At the end of output the process is reaped;
// a failing exit with no output is an error, otherwise it is logged.
func (s *TreeSource) Next(ctx context.Context) (RawLine, error) {
	if err := ctx.Err(); err != nil {
		return RawLine{}, err
	}

	line, err := s.lines.next()
	if err == nil {
		s.emitted++
		return line, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return RawLine{}, ctxErr
	}
	if !errors.Is(err, io.EOF) {
		return RawLine{}, fmt.Errorf("reading tree output: %w", err)
	}

	if werr := s.wait(); werr != nil {
		msg := strings.TrimSpace(s.stderr.String())
		if s.emitted == 0 {
			return RawLine{}, fmt.Errorf("tree failed: %w: %s", werr, msg)
		}
		logging.Get("listing").Warn("tree exited with error", "error", werr, "stderr", msg)
	}
	return RawLine{}, io.EOF
}

func (s *TreeSource) wait() error {
	s.closeOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
		s.cancel()
	})
	return s.waitErr
}

// Close kills the process if it is still running and reaps it.
func (s *TreeSource) Close() error {
	s.cancel()
	_ = s.wait()
	return nil
}

var _ Source = (*TreeSource)(nil)
