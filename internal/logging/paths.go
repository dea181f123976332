package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.ptts/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ptts", "logs")
	}
	return filepath.Join(home, ".ptts", "logs")
}

// DefaultLogPath returns the default log path for the ptts CLI process.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "ptts.log")
}

// CollaboratorLogPath returns the log path for Datalab OCR/vision call traces,
// kept separate so a noisy collaborator doesn't drown out pipeline logs.
func CollaboratorLogPath() string {
	return filepath.Join(DefaultLogDir(), "collaborator.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceMain is the ptts CLI process log (default).
	LogSourceMain LogSource = "main"
	// LogSourceCollaborator is the Datalab OCR/vision call trace log.
	LogSourceCollaborator LogSource = "collaborator"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. ~/.ptts/logs/ptts.log (global)
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

	return "", fmt.Errorf("no log file found. Run with --debug at least once.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
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
		p := DefaultLogPath()
		checked = append(checked, p)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}

	case LogSourceCollaborator:
		p := CollaboratorLogPath()
		checked = append(checked, p)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}

	case LogSourceAll:
		mainPath := DefaultLogPath()
		collabPath := CollaboratorLogPath()
		checked = append(checked, mainPath, collabPath)

		if _, err := os.Stat(mainPath); err == nil {
			paths = append(paths, mainPath)
		}
		if _, err := os.Stat(collabPath); err == nil {
			paths = append(paths, collabPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: main, collaborator, all)", source)
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
	case "collaborator":
		return LogSourceCollaborator
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
		return "To generate logs:\n  ptts --debug <command>"
	case LogSourceCollaborator:
		return "Collaborator call traces are written once OCR or vision extraction runs"
	case LogSourceAll:
		return "To generate logs:\n  ptts --debug <command>"
	default:
		return ""
	}
}
