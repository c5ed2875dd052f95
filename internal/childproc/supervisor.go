// Package childproc supervises the spawned MCP server child process:
// piped stdio, stderr passthrough, and exit observation (spec.md §4.D).
package childproc

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/contextguard/contextguard/internal/logging"
)

// Supervisor spawns and owns one child process. Stdin/Stdout are exposed
// as pipes for the interceptor pipelines; Stderr is connected directly to
// the gateway's own stderr (passthrough, spec.md §4.D).
type Supervisor struct {
	cmd      *exec.Cmd
	Stdin    io.WriteCloser
	Stdout   io.ReadCloser
	sessionID string
}

// Spawn starts argv[0] with argv[1:] as arguments, wiring stdin/stdout as
// pipes and stderr as passthrough. Returns an error on spawn failure; the
// caller is responsible for emitting SERVER_ERROR and exiting non-zero,
// per spec.md §4.D.
func Spawn(argv []string, sessionID string) (*Supervisor, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("childproc: empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("childproc: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("childproc: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("childproc: starting %s: %w", argv[0], err)
	}

	return &Supervisor{
		cmd:       cmd,
		Stdin:     stdin,
		Stdout:    stdout,
		sessionID: sessionID,
	}, nil
}

// Wait blocks until the child exits and returns its exit code. A nil
// signal-based termination maps to exit code 0, per spec.md §4.D.
func (s *Supervisor) Wait() int {
	err := s.cmd.Wait()
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		if code < 0 {
			// Negative ExitCode means the process was terminated by a
			// signal rather than exiting normally; the spec maps that
			// case to exit code 0 (§4.D: "null for signal").
			return 0
		}
		return code
	}
	logging.Warn("child_wait_error", logging.Fields{
		Component: "childproc",
		SessionID: s.sessionID,
		Error:     err.Error(),
	})
	return 1
}

// Pid returns the child process id, or 0 if the child has not started.
func (s *Supervisor) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// CloseStdin closes the child's stdin, signaling end-of-input so the
// child can shut down gracefully (spec.md §4.D termination note).
func (s *Supervisor) CloseStdin() error {
	return s.Stdin.Close()
}
