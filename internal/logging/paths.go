package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// dataDir mirrors internal/config's default data directory resolution so
// the log viewer finds files under the same logs/ subdirectory the main
// process writes to (spec.md §6 on-disk layout) without importing the
// config package.
func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "srag")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "srag")
	}
	return filepath.Join(home, ".local", "share", "srag")
}

// DefaultLogDir returns the default log directory under the data dir.
func DefaultLogDir() string {
	return filepath.Join(dataDir(), "logs")
}

// DefaultLogPath returns the default main-process log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "srag.log")
}

// MLWorkerLogPath returns the ML worker subprocess's log path (C8).
func MLWorkerLogPath() string {
	return filepath.Join(DefaultLogDir(), "ml-worker.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceMain is the main process's own logs (default).
	LogSourceMain LogSource = "main"
	// LogSourceMLWorker is the ML worker subprocess's logs.
	LogSourceMLWorker LogSource = "ml"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. the default main-process log path
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. Process may not have run with --debug yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	// Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceMain:
		mainPath := DefaultLogPath()
		checked = append(checked, mainPath)
		if _, err := os.Stat(mainPath); err == nil {
			paths = append(paths, mainPath)
		}

	case LogSourceMLWorker:
		mlPath := MLWorkerLogPath()
		checked = append(checked, mlPath)
		if _, err := os.Stat(mlPath); err == nil {
			paths = append(paths, mlPath)
		}

	case LogSourceAll:
		mainPath := DefaultLogPath()
		mlPath := MLWorkerLogPath()
		checked = append(checked, mainPath, mlPath)

		if _, err := os.Stat(mainPath); err == nil {
			paths = append(paths, mainPath)
		}
		if _, err := os.Stat(mlPath); err == nil {
			paths = append(paths, mlPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: main, ml, all)", source)
	}

	if len(paths) == 0 {
		hint := getLogHint(source)
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\n%s", source, checked, hint)
	}

	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	switch s {
	case "ml":
		return LogSourceMLWorker
	case "all":
		return LogSourceAll
	default:
		return LogSourceMain
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}

// getLogHint returns a helpful message on how to generate logs for the given source.
func getLogHint(source LogSource) string {
	switch source {
	case LogSourceMain:
		return "To generate main-process logs:\n  srag --debug serve"
	case LogSourceMLWorker:
		return "The ML worker log appears once the supervisor spawns it:\n  srag --debug serve"
	case LogSourceAll:
		return "To generate logs:\n  srag --debug serve"
	default:
		return ""
	}
}
