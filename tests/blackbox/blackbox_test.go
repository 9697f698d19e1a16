package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	cleanup := func() { _ = ln.Close() }
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port, cleanup
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	bbDir := filepath.Dir(thisFile)
	return filepath.Dir(filepath.Dir(bbDir))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	root := projectRootFromThisFile(t)
	outDir := t.TempDir()
	binPath := filepath.Join(outDir, "trast")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/trast")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// writeIdentityArtifact uses the binary's own artifact command so the test
// exercises the same code path an operator would.
func writeIdentityArtifact(t *testing.T, bin string, dim int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "identity.trsm")
	cmd := exec.Command(bin, "artifact", "identity", "--id", "bb-identity", "--dim", fmt.Sprint(dim), "--out", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("artifact identity failed: %v\n%s", err, string(out))
	}
	return path
}

type serverProc struct {
	cmd  *exec.Cmd
	base string
}

func startServer(t *testing.T, bin, modelPath string, port int, extra ...string) *serverProc {
	t.Helper()
	addr := fmt.Sprintf(":%d", port)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	args := append([]string{"serve", "--addr", addr, "--model", modelPath}, extra...)
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/readyz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			_ = cmd.Process.Kill()
			t.Fatalf("server did not become ready in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	sp := &serverProc{cmd: cmd, base: base}
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return sp
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	artifact := writeIdentityArtifact(t, bin, 3)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, artifact, port)

	// /healthz
	resp, body := get(t, sp.base+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz %d %s", resp.StatusCode, string(body))
	}

	// identity model echoes the input back
	resp, body = postJSON(t, sp.base+"/predict", []byte(`{"input":{"dtype":"f32","shape":[3],"data":[1,2,3]}}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/predict %d %s", resp.StatusCode, string(body))
	}
	var pr struct {
		Output struct {
			Shape []int     `json:"shape"`
			Data  []float32 `json:"data"`
		} `json:"output"`
		CorrelationID string `json:"correlation_id"`
	}
	if err := json.Unmarshal(body, &pr); err != nil {
		t.Fatalf("/predict json: %v body=%s", err, string(body))
	}
	if len(pr.Output.Data) != 3 || pr.Output.Data[0] != 1 || pr.Output.Data[2] != 3 {
		t.Fatalf("/predict output = %+v", pr.Output)
	}
	if pr.CorrelationID == "" {
		t.Fatal("/predict expected a generated correlation id")
	}

	// wrong input dimension is a schema error, not a 500
	resp, body = postJSON(t, sp.base+"/predict", []byte(`{"input":{"dtype":"f32","shape":[2],"data":[1,2]}}`))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("/predict bad shape %d %s", resp.StatusCode, string(body))
	}

	// /status reports the loaded model
	resp, body = get(t, sp.base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, string(body))
	}
	var st struct {
		State string `json:"state"`
		Model struct {
			ID       string `json:"id"`
			InputDim int    `json:"input_dim"`
		} `json:"model"`
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("/status json: %v body=%s", err, string(body))
	}
	if st.State != "ready" || st.Model.ID != "bb-identity" || st.Model.InputDim != 3 {
		t.Fatalf("/status = %+v", st)
	}

	// /metrics exposes prometheus counters
	resp, body = get(t, sp.base+"/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "trast_http_requests_total") {
		t.Fatalf("/metrics %d", resp.StatusCode)
	}
}

func TestBlackbox_GracefulShutdown(t *testing.T) {
	bin := buildBinary(t)
	artifact := writeIdentityArtifact(t, bin, 2)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, artifact, port)

	if err := sp.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- sp.cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("process exit: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit after SIGTERM")
	}
}

func TestBlackbox_ConfigFile(t *testing.T) {
	bin := buildBinary(t)
	artifact := writeIdentityArtifact(t, bin, 3)
	port, release := findFreePort(t)
	release()

	cfgPath := filepath.Join(t.TempDir(), "trast.yaml")
	cfg := fmt.Sprintf("addr: \":%d\"\nmodel_path: %q\nslots: 2\nbacklog: 8\n", port, artifact)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, "serve", "--config", cfgPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/readyz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not become ready in time")
		}
		time.Sleep(50 * time.Millisecond)
	}

	resp, body := get(t, base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, string(body))
	}
	var st struct {
		Queue struct {
			Slots      int `json:"slots"`
			BacklogCap int `json:"backlog_cap"`
		} `json:"queue"`
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("/status json: %v body=%s", err, string(body))
	}
	if st.Queue.Slots != 2 || st.Queue.BacklogCap != 8 {
		t.Fatalf("/status queue = %+v", st.Queue)
	}
}

func TestBlackbox_MissingModelFailsFast(t *testing.T) {
	bin := buildBinary(t)
	cmd := exec.Command(bin, "serve", "--model", filepath.Join(t.TempDir(), "nope.trsm"))
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("expected non-zero exit, output: %s", out)
	}
}
