// Package pidfile records the running worker so a second worker refuses to
// start and doctor can report liveness.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/podcheck/internal/constants"
)

var (
	findProcessFunc = ps.FindProcess
	getpidFunc      = os.Getpid
)

var (
	ErrNotRunning     = errors.New("worker is not running")
	ErrStale          = errors.New("pidfile is stale")
	ErrAlreadyRunning = errors.New("worker is already running")
)

// Info is the content of a pidfile: pid|executable|started.
type Info struct {
	PID        int
	Executable string
	StartedAt  time.Time
}

func Path(dir string) string {
	return filepath.Join(dir, constants.PidfileName)
}

func Read(path string) (Info, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Info{}, ErrNotRunning
	}
	if err != nil {
		return Info{}, fmt.Errorf("failed to read pidfile: %w", err)
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return Info{}, errors.New("pidfile is malformed")
	}

	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid < 1 {
		return Info{}, errors.New("invalid process ID in pidfile")
	}
	exe := strings.TrimSpace(parts[1])
	if exe == "" {
		return Info{}, errors.New("executable in pidfile is empty")
	}
	started, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return Info{}, fmt.Errorf("invalid start time in pidfile: %w", err)
	}
	return Info{PID: pid, Executable: exe, StartedAt: started}, nil
}

// Check returns the recorded worker if its process is still alive and is
// the same program that wrote the file.
func Check(path string) (Info, error) {
	info, err := Read(path)
	if err != nil {
		return Info{}, err
	}

	process, err := findProcessFunc(info.PID)
	if err != nil || process == nil {
		return info, fmt.Errorf("%w: process %d not running", ErrStale, info.PID)
	}
	if process.Executable() != info.Executable {
		return info, fmt.Errorf("%w: process with PID %d is %s, not %s", ErrStale, info.PID, process.Executable(), info.Executable)
	}
	return info, nil
}

// Acquire writes a pidfile for the current process and returns a release
// func that removes it. A stale pidfile is replaced.
func Acquire(path string, now time.Time) (func() error, error) {
	if info, err := Check(path); err == nil {
		return nil, fmt.Errorf("%w (pid %d since %s)", ErrAlreadyRunning, info.PID, info.StartedAt.Format(time.RFC3339))
	}

	pid := getpidFunc()
	exe := constants.AppName
	if self, err := findProcessFunc(pid); err == nil && self != nil {
		exe = self.Executable()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create pidfile directory: %w", err)
	}
	content := fmt.Sprintf("%d|%s|%s\n", pid, exe, now.UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return nil, fmt.Errorf("failed to write pidfile: %w", err)
	}

	return func() error {
		// Only remove the file if it is still ours.
		info, err := Read(path)
		if err != nil || info.PID != pid {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}, nil
}
