package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.algoliasync/logs, or a temp-dir equivalent when the
// home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".algoliasync", "logs")
	}
	return filepath.Join(home, ".algoliasync", "logs")
}

// DefaultLogPath returns the log file shared by CLI commands.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "sync.log")
}

// DaemonLogPath returns the log file used by the background daemon.
func DaemonLogPath() string {
	return filepath.Join(DefaultLogDir(), "daemon.log")
}

// LogPaths resolves the files to read for a source: sync, daemon or all.
// A non-empty file overrides the source.
func LogPaths(source, file string) ([]string, error) {
	if file != "" {
		return []string{file}, nil
	}
	switch source {
	case "", SourceSync:
		return []string{DefaultLogPath()}, nil
	case SourceDaemon:
		return []string{DaemonLogPath()}, nil
	case "all":
		return []string{DefaultLogPath(), DaemonLogPath()}, nil
	default:
		return nil, fmt.Errorf("unknown log source %q (valid: sync, daemon, all)", source)
	}
}
