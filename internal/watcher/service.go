package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/srag-go/srag/internal/indexer"
	"github.com/srag-go/srag/internal/model"
)

// batchedWatcher is the subset of HybridWatcher's behaviour the Service
// depends on, named separately so tests can substitute a fake.
type batchedWatcher interface {
	Start(ctx context.Context, path string) error
	Stop() error
	Events() <-chan []FileEvent
	Errors() <-chan error
}

// ServiceCatalog is the subset of *catalog.Catalog the reindex dispatch
// loop depends on.
type ServiceCatalog interface {
	GetProjectByName(ctx context.Context, name string) (model.Project, error)
	EnqueueReindex(ctx context.Context, project, path string, event model.ReindexEvent) error
	DequeueReindex(ctx context.Context, project string) (model.ReindexQueueItem, bool, error)
}

// ProjectRoot names one directory the Service watches.
type ProjectRoot struct {
	Name string
	Path string
}

// ServiceOptions configures a Service run.
type ServiceOptions struct {
	DebounceMs       int
	IgnorePatterns   []string
	MaxFileSizeBytes int64
	BatchSize        int
	ThrottleMs       int
}

// Service watches one or more project directories and, on each debounced
// change batch, enqueues and immediately drains a per-file reindex against
// the catalog (spec.md §4.13). One HybridWatcher runs per project root so
// that every event is already attributable to its owning project without
// a prefix-match scan.
type Service struct {
	catalog  ServiceCatalog
	indexer  *indexer.Indexer
	projects []ProjectRoot
	opts     ServiceOptions

	newWatcher           func(Options) (batchedWatcher, error)
	dispatchIndexOnePath func(ctx context.Context, projectID int64, rootPath, relPath string, opts indexer.Options) error
	dispatchRemovePath   func(ctx context.Context, projectID int64, relPath string) error

	mu       sync.Mutex
	watchers map[string]batchedWatcher
}

// NewService builds a Service over the given projects. catalog and idx
// supply the queue and per-file reindex operations respectively.
func NewService(catalog ServiceCatalog, idx *indexer.Indexer, projects []ProjectRoot, opts ServiceOptions) *Service {
	return &Service{
		catalog:              catalog,
		indexer:              idx,
		projects:             projects,
		opts:                 opts,
		dispatchIndexOnePath: idx.IndexOnePath,
		dispatchRemovePath:   idx.RemovePath,
		newWatcher: func(o Options) (batchedWatcher, error) {
			return NewHybridWatcher(o)
		},
		watchers: make(map[string]batchedWatcher),
	}
}

// Run watches every configured project directory that currently exists
// until ctx is cancelled. Each project's events are dispatched concurrently;
// Run returns once all per-project loops have stopped.
func (s *Service) Run(ctx context.Context) error {
	watchOpts := Options{
		DebounceWindow: msOrDefault(s.opts.DebounceMs, 500),
		IgnorePatterns: s.opts.IgnorePatterns,
	}.WithDefaults()

	var wg sync.WaitGroup
	for _, project := range s.projects {
		if _, err := os.Stat(project.Path); err != nil {
			slog.Warn("skip_watch_missing_directory", slog.String("project", project.Name), slog.String("path", project.Path))
			continue
		}

		w, err := s.newWatcher(watchOpts)
		if err != nil {
			slog.Warn("start_watcher_failed", slog.String("project", project.Name), slog.String("error", err.Error()))
			continue
		}

		s.mu.Lock()
		s.watchers[project.Name] = w
		s.mu.Unlock()

		wg.Add(1)
		go func(p ProjectRoot, w batchedWatcher) {
			defer wg.Done()
			s.runProject(ctx, p, w)
		}(project, w)
	}

	wg.Wait()
	return nil
}

// Stop stops every running per-project watcher. Safe to call once Run has
// returned or concurrently with it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		_ = w.Stop()
	}
}

func (s *Service) runProject(ctx context.Context, project ProjectRoot, w batchedWatcher) {
	defer func() {
		_ = w.Stop()
	}()

	go func() {
		if err := w.Start(ctx, project.Path); err != nil && ctx.Err() == nil {
			slog.Warn("watcher_exited", slog.String("project", project.Name), slog.String("error", err.Error()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			s.handleBatch(ctx, project, batch)
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			slog.Warn("watcher_error", slog.String("project", project.Name), slog.String("error", err.Error()))
		}
	}
}

// handleBatch implements spec.md §4.13's per-batch steps 1-4: classify
// each event, enqueue it, then immediately dequeue and reindex. Dequeuing
// immediately after enqueuing (rather than draining the whole queue) keeps
// the catalog queue as the durable worklist — a crash between enqueue and
// dequeue leaves a recoverable pending item, not lost work.
func (s *Service) handleBatch(ctx context.Context, project ProjectRoot, batch []FileEvent) {
	for _, evt := range batch {
		if evt.Operation != OpCreate && evt.Operation != OpModify && evt.Operation != OpDelete && evt.Operation != OpRename {
			continue
		}
		if evt.IsDir {
			continue
		}

		event := model.EventModify
		if _, err := os.Stat(filepath.Join(project.Path, evt.Path)); err != nil {
			event = model.EventDelete
		}

		if err := s.catalog.EnqueueReindex(ctx, project.Name, evt.Path, event); err != nil {
			slog.Warn("enqueue_reindex_failed", slog.String("project", project.Name), slog.String("path", evt.Path), slog.String("error", err.Error()))
			continue
		}

		s.drainOne(ctx, project)
	}
}

func (s *Service) drainOne(ctx context.Context, project ProjectRoot) {
	item, ok, err := s.catalog.DequeueReindex(ctx, project.Name)
	if err != nil {
		slog.Warn("dequeue_reindex_failed", slog.String("project", project.Name), slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}

	p, err := s.catalog.GetProjectByName(ctx, project.Name)
	if err != nil {
		slog.Warn("reindex_lookup_project_failed", slog.String("project", project.Name), slog.String("error", err.Error()))
		s.reenqueue(ctx, project, item)
		return
	}

	opts := indexer.Options{
		MaxFileSizeBytes: s.opts.MaxFileSizeBytes,
		ThrottleMs:       0,
		IgnorePatterns:   s.opts.IgnorePatterns,
	}

	var reindexErr error
	switch item.Event {
	case model.EventDelete:
		reindexErr = s.dispatchRemovePath(ctx, p.ID, item.Path)
	default:
		reindexErr = s.dispatchIndexOnePath(ctx, p.ID, project.Path, item.Path, opts)
	}

	if reindexErr != nil {
		slog.Warn("reindex_file_failed", slog.String("project", project.Name), slog.String("path", item.Path), slog.String("error", reindexErr.Error()))
		s.reenqueue(ctx, project, item)
	}
}

func (s *Service) reenqueue(ctx context.Context, project ProjectRoot, item model.ReindexQueueItem) {
	if err := s.catalog.EnqueueReindex(ctx, project.Name, item.Path, item.Event); err != nil {
		slog.Warn("reenqueue_failed", slog.String("project", project.Name), slog.String("path", item.Path), slog.String("error", err.Error()))
	}
}

func msOrDefault(ms int, fallback int) time.Duration {
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// PIDFile manages a runtime-dir PID file owned by a single foreground
// watcher process: write on start, remove on clean shutdown, and a
// liveness/ownership check so stale files left by a crashed process don't
// block a new one from starting.
type PIDFile struct {
	path string
}

// NewPIDFile returns a PIDFile at dir/watcher.pid.
func NewPIDFile(dir string) *PIDFile {
	return &PIDFile{path: filepath.Join(dir, "watcher.pid")}
}

// Write records the current process's PID, failing if a live, differently
// owned process already holds the file.
func (f *PIDFile) Write() error {
	if owner, alive := f.ownerPID(); alive && owner != os.Getpid() {
		return &pidFileHeldError{pid: owner}
	}
	return os.WriteFile(f.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// Remove deletes the PID file, but only if it still names this process —
// protects against a respawned watcher racing this one's cleanup, and
// refuses to remove a file whose pid has been recycled by an unrelated
// process.
func (f *PIDFile) Remove() error {
	owner, ok := f.readPID()
	if !ok || owner != os.Getpid() {
		return nil
	}
	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// belongsToThisProgram reads /proc/<pid>/cmdline and checks it names an
// srag process, guarding against a stale PID file whose number has since
// been recycled by an unrelated process.
func belongsToThisProgram(pid int) bool {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		// Non-Linux or /proc unavailable: fall back to the liveness probe alone.
		return true
	}
	return strings.Contains(string(data), "srag")
}

func (f *PIDFile) readPID() (int, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

func (f *PIDFile) ownerPID() (int, bool) {
	pid, ok := f.readPID()
	if !ok {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	// FindProcess always succeeds on Unix; signal 0 is the actual liveness probe.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return pid, false
	}
	if !belongsToThisProgram(pid) {
		return pid, false
	}
	return pid, true
}

type pidFileHeldError struct {
	pid int
}

func (e *pidFileHeldError) Error() string {
	return "watcher already running with pid " + strconv.Itoa(e.pid)
}
