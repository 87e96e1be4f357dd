package e2e

import (
	"os"
	"os/exec"
	"testing"
)

var reportesBin string

func TestMain(m *testing.M) {
	reportesBin = envOrLookPath("REPORTES_BIN", "reportes")
	os.Exit(m.Run())
}

func envOrLookPath(envVar, name string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}

func requireReportes(t *testing.T) {
	t.Helper()
	if reportesBin == "" {
		t.Skip("reportes binary not available (set REPORTES_BIN or add to PATH)")
	}
}
