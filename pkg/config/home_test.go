package config

import (
	"path/filepath"
	"testing"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	t.Setenv("LOGICAUTO_HOME", "/custom/path")

	got := GetHome()
	if got != "/custom/path" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/path")
	}
}

func TestGetHome_UserHome(t *testing.T) {
	ResetHome()
	tmpDir := t.TempDir()
	t.Setenv("LOGICAUTO_HOME", "")
	t.Setenv("HOME", tmpDir)

	got := GetHome()
	want := filepath.Join(tmpDir, ".logicauto")
	if got != want {
		t.Errorf("GetHome() = %q, want %q", got, want)
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Setenv("LOGICAUTO_HOME", "/first")

	first := GetHome()

	// Change env, should NOT affect cached value
	t.Setenv("LOGICAUTO_HOME", "/second")
	second := GetHome()

	if first != second {
		t.Errorf("GetHome() not cached: first=%q, second=%q", first, second)
	}
}

func TestGetRunsDir(t *testing.T) {
	ResetHome()
	t.Setenv("LOGICAUTO_HOME", "/test/home")

	got := GetRunsDir()
	want := filepath.Join("/test/home", "runs")
	if got != want {
		t.Errorf("GetRunsDir() = %q, want %q", got, want)
	}
}

func TestGetLogsDir(t *testing.T) {
	ResetHome()
	t.Setenv("LOGICAUTO_HOME", "/test/home")

	got := GetLogsDir()
	want := filepath.Join("/test/home", "logs")
	if got != want {
		t.Errorf("GetLogsDir() = %q, want %q", got, want)
	}
}

func TestGetRecordingsDir(t *testing.T) {
	ResetHome()
	t.Setenv("LOGICAUTO_HOME", "/test/home")

	got := GetRecordingsDir()
	want := filepath.Join("/test/home", "recordings")
	if got != want {
		t.Errorf("GetRecordingsDir() = %q, want %q", got, want)
	}
}
