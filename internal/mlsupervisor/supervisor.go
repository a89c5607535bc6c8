// Package mlsupervisor owns the lifecycle of the separate ML worker
// process (C8): discovering it via a port file, probing liveness, spawning
// it when absent, and shutting it down. Grounded on
// original_source/crates/srag-core/src/ipc/lifecycle.rs for exact
// semantics (stale-port-file cleanup, token replay defense, 30s/100ms poll
// loop) and on the teacher's internal/daemon/pidfile.go for the
// file-plus-os.Process lifecycle idiom this generalizes.
package mlsupervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/srag-go/srag/internal/mlclient"
	"github.com/srag-go/srag/internal/srerrors"
)

const (
	probeTimeout   = 2 * time.Second
	startupTimeout = 30 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// WorkerArgs carries the config-derived arguments passed to the spawned ML
// worker process (models dir, embedder/llm settings, API provider/key
// path), mirroring lifecycle.rs's Command argument list.
type WorkerArgs struct {
	Command       string
	ModelsDir     string
	ModelFilename string
	ModelURL      string
	LLMThreads    int
	ContextSize   int
	APIProvider   string
	APIModel      string
	APIMaxTokens  int
	APIKeyPath    string
	RedactSecrets bool
}

// Supervisor manages discovery, startup, and shutdown of the ML worker for
// one runtime directory.
type Supervisor struct {
	runtimeDir   string
	portFile     string
	tokenFile    string
	lockFile     string
	serviceStart int64
}

// New creates a Supervisor rooted at runtimeDir (holding the port, token,
// and lock files).
func New(runtimeDir string) *Supervisor {
	return &Supervisor{
		runtimeDir: runtimeDir,
		portFile:   filepath.Join(runtimeDir, "ml.port"),
		tokenFile:  filepath.Join(runtimeDir, "ml.token"),
		lockFile:   filepath.Join(runtimeDir, "ml.lock"),
	}
}

// PortFilePath and TokenFilePath expose the discovery paths for callers
// (e.g. mlclient.Dial) that need to connect independently of this
// Supervisor instance.
func (s *Supervisor) PortFilePath() string  { return s.portFile }
func (s *Supervisor) TokenFilePath() string { return s.tokenFile }

// EnsureRunning verifies the worker is reachable, spawning it if not.
// Concurrent callers (e.g. two CLI invocations racing at startup) are
// serialized by an flock'd lock file so only one spawns the worker.
func (s *Supervisor) EnsureRunning(ctx context.Context, args WorkerArgs) error {
	if err := os.MkdirAll(s.runtimeDir, 0o755); err != nil {
		return srerrors.IPCError("create runtime dir", err)
	}

	lock := flock.New(s.lockFile)
	if err := lock.Lock(); err != nil {
		return srerrors.IPCError("acquire ml supervisor lock", err)
	}
	defer lock.Unlock()

	if _, ok := s.readLiveAddr(); ok {
		return nil
	}
	_ = os.Remove(s.portFile)

	token := generateAuthToken()
	s.serviceStart = time.Now().Unix()
	if err := writeTokenWithTimestamp(s.tokenFile, token, s.serviceStart); err != nil {
		return srerrors.IPCError("write auth token", err)
	}

	if err := s.spawn(args, token); err != nil {
		return err
	}

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		if _, ok := s.readLiveAddr(); ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return srerrors.IPCError("ensure ml worker running", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
	return srerrors.New(srerrors.IPC, "ml_worker_start_timeout", "timed out waiting for ml worker to start")
}

// readLiveAddr reads the port file (if present) and probes it, returning
// the address and whether the probe succeeded.
func (s *Supervisor) readLiveAddr() (string, bool) {
	addr, err := ReadServiceAddr(s.portFile)
	if err != nil {
		return "", false
	}
	return addr, probeService(addr)
}

func (s *Supervisor) spawn(args WorkerArgs, token string) error {
	command := args.Command
	if command == "" {
		command = "srag-ml-worker"
	}
	cmdArgs := []string{
		"--host", "127.0.0.1",
		"--port", "0",
		"--port-file", s.portFile,
		"--models-dir", args.ModelsDir,
		"--auth-token", token,
		"--model-filename", args.ModelFilename,
		"--model-url", args.ModelURL,
		"--llm-threads", strconv.Itoa(args.LLMThreads),
		"--llm-context-size", strconv.Itoa(args.ContextSize),
		"--api-provider", args.APIProvider,
		"--api-model", args.APIModel,
		"--api-max-tokens", strconv.Itoa(args.APIMaxTokens),
		"--redact-secrets", strconv.FormatBool(args.RedactSecrets),
		"--api-key-file", args.APIKeyPath,
	}

	cmd := exec.Command(command, cmdArgs...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return srerrors.IPCError(fmt.Sprintf("spawn ml worker %q", command), err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Shutdown sends a framed shutdown RPC (best-effort) and removes the port
// and token files; failures are tolerated, matching lifecycle.rs's
// stop_ml_service.
func (s *Supervisor) Shutdown() {
	if addr, err := ReadServiceAddr(s.portFile); err == nil {
		token, _ := s.ReadAuthToken()
		if client, err := mlclient.Dial(addr, token); err == nil {
			client.Shutdown()
			_ = client.Close()
		}
	}
	_ = os.Remove(s.portFile)
	_ = os.Remove(s.tokenFile)
}

// ReadAuthToken reads and validates the token file against this
// Supervisor's recorded service start time.
func (s *Supervisor) ReadAuthToken() (string, error) {
	return readAuthToken(s.tokenFile, s.serviceStart)
}

// ReadServiceAddr reads the decimal port from portFile and returns the
// loopback address string.
func ReadServiceAddr(portFile string) (string, error) {
	data, err := os.ReadFile(portFile)
	if err != nil {
		return "", srerrors.IPCError("read port file", err)
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return "", srerrors.IPCError("parse port file", err)
	}
	if port <= 0 || port > 65535 {
		return "", srerrors.New(srerrors.IPC, "invalid_port", "port out of range")
	}
	return fmt.Sprintf("127.0.0.1:%d", port), nil
}

func probeService(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, probeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

