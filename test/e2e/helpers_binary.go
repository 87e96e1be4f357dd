//go:build e2e

package e2e

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// reportesServer manages a running reportes server process.
type reportesServer struct {
	cmd     *exec.Cmd
	dataDir string
	dbPath  string
	address string
	logFile string
}

// startReportes launches the reportes binary and waits for it to become healthy.
// It is configured entirely via environment variables.
func startReportes(t *testing.T) *reportesServer {
	t.Helper()
	requireReportes(t)

	dataDir := t.TempDir()
	port := freePort(t)
	s := &reportesServer{
		dataDir: dataDir,
		dbPath:  filepath.Join(dataDir, "reportes.db"),
		address: fmt.Sprintf("127.0.0.1:%d", port),
		logFile: filepath.Join(dataDir, "reportes.log"),
	}

	s.cmd = exec.Command(reportesBin)
	s.cmd.Env = append(os.Environ(), s.env(port)...)

	lf, err := os.Create(s.logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	s.cmd.Stdout = lf
	s.cmd.Stderr = lf

	if err := s.cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start reportes: %v", err)
	}

	t.Cleanup(func() {
		s.stop()
		lf.Close()
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		logs, _ := os.ReadFile(s.logFile)
		t.Fatalf("reportes not healthy: %v\n%s", err, logs)
	}
	return s
}

func (s *reportesServer) env(port int) []string {
	return []string{
		fmt.Sprintf("REPORTES_PORT=%d", port),
		"REPORTES_DB_PATH=" + s.dbPath,
		"REPORTES_CONFIG_PATH=" + filepath.Join(s.dataDir, "nonexistent.yaml"),
		"REPORTES_RETENTION_MAX_AGE=0s",
		"REPORTES_CACHE_PATH=" + filepath.Join(s.dataDir, "cache.db"),
		"REPORTES_SERVER_URL=" + s.baseURL(),
	}
}

func (s *reportesServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
	}
}

func (s *reportesServer) baseURL() string {
	return "http://" + s.address
}

func (s *reportesServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(s.baseURL() + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("health check did not pass within %v", timeout)
}

// cli runs a reportes subcommand against the server's database and cache.
func (s *reportesServer) cli(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(reportesBin, args...)
	cmd.Env = append(os.Environ(), s.env(0)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
