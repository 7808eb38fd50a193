package providers

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	kexec "github.com/systmms/kapsel/pkg/exec"
)

// Launcher starts and stops a local service instance for development.
type Launcher interface {
	// Launch starts an instance whose files live in workDir and returns its
	// URL plus the run state needed to stop it later.
	Launch(ctx context.Context, workDir string) (string, map[string]interface{}, error)

	// Stop terminates the instance described by state.
	Stop(ctx context.Context, state map[string]interface{}) error
}

// RedisLauncher runs redis-server daemonized on the first free port of a
// range.
type RedisLauncher struct {
	executor   kexec.CommandExecutor
	Executable string
	LowPort    int
	HighPort   int

	// PortFree and Ping are replaceable for tests.
	PortFree func(port int) bool
	Ping     PingFunc

	// StartupTimeout bounds how long to wait for the first PONG.
	StartupTimeout time.Duration
}

// NewRedisLauncher returns a launcher using ports 6380 to 6449.
func NewRedisLauncher(executor kexec.CommandExecutor) *RedisLauncher {
	if executor == nil {
		executor = kexec.DefaultExecutor()
	}
	return &RedisLauncher{
		executor:       executor,
		Executable:     "redis-server",
		LowPort:        6380,
		HighPort:       6449,
		PortFree:       portFree,
		Ping:           PingRedis,
		StartupTimeout: 5 * time.Second,
	}
}

// Launch implements Launcher.
func (l *RedisLauncher) Launch(ctx context.Context, workDir string) (string, map[string]interface{}, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create %s: %w", workDir, err)
	}
	pidfile := filepath.Join(workDir, "redis.pid")
	logfile := filepath.Join(workDir, "redis.log")

	for port := l.LowPort; port <= l.HighPort; port++ {
		if !l.PortFree(port) {
			continue
		}
		args := []string{
			"--daemonize", "yes",
			"--port", strconv.Itoa(port),
			"--bind", "127.0.0.1",
			"--pidfile", pidfile,
			"--logfile", logfile,
			"--dir", workDir,
		}
		_, stderr, err := l.executor.Execute(ctx, l.Executable, args...)
		if err != nil {
			msg := strings.TrimSpace(string(stderr))
			if msg == "" {
				msg = err.Error()
			}
			return "", nil, fmt.Errorf("failed to start %s: %s", l.Executable, msg)
		}

		serviceURL := fmt.Sprintf("redis://localhost:%d", port)
		if err := l.waitReady(ctx, serviceURL); err != nil {
			return "", nil, fmt.Errorf("%s started on port %d but is not answering: %w", l.Executable, port, err)
		}
		return serviceURL, map[string]interface{}{
			"url":     serviceURL,
			"port":    port,
			"pidfile": pidfile,
		}, nil
	}
	return "", nil, fmt.Errorf("all ports from %d to %d were in use, could not start %s", l.LowPort, l.HighPort, l.Executable)
}

func (l *RedisLauncher) waitReady(ctx context.Context, serviceURL string) error {
	deadline := time.Now().Add(l.StartupTimeout)
	var lastErr error
	for {
		pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
		lastErr = l.Ping(pingCtx, serviceURL)
		cancel()
		if lastErr == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Stop implements Launcher.
func (l *RedisLauncher) Stop(_ context.Context, state map[string]interface{}) error {
	pidfile, _ := state["pidfile"].(string)
	if pidfile == "" {
		return nil
	}
	raw, err := os.ReadFile(pidfile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", pidfile, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("invalid pid in %s: %w", pidfile, err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil && err != os.ErrProcessDone {
		return fmt.Errorf("failed to stop process %d: %w", pid, err)
	}
	return nil
}

func portFree(port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
