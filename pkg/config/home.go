package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "LOGICAUTO_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the automator home directory.
//
// Resolution order:
//  1. $LOGICAUTO_HOME environment variable
//  2. ~/.logicauto
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetRunsDir returns <home>/runs, where replay artifacts are stored.
func GetRunsDir() string {
	return filepath.Join(GetHome(), "runs")
}

// GetLogsDir returns <home>/logs.
func GetLogsDir() string {
	return filepath.Join(GetHome(), "logs")
}

// GetRecordingsDir returns <home>/recordings, where finished session
// recordings land.
func GetRecordingsDir() string {
	return filepath.Join(GetHome(), "recordings")
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// 2. ~/.logicauto
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".logicauto")
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
