package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trast/internal/executor"
	"trast/internal/health"
	"trast/internal/model"
	"trast/internal/tensor"

	"trast/pkg/types"
)

func identityHandle(t *testing.T, dim int) *model.Handle {
	t.Helper()
	p := filepath.Join(t.TempDir(), "identity.trsm")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := model.WriteArtifact(f, model.Identity("identity-v1", dim)); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()
	h, err := model.Load(p, model.DeviceConfig{Device: "cpu"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return h
}

func payload(data ...float32) types.TensorPayload {
	return types.TensorPayload{DType: "f32", Shape: []int{len(data)}, Data: data}
}

func TestPredict_IdentityEndToEnd(t *testing.T) {
	rep := health.New(nil)
	e := New(Config{Model: identityHandle(t, 3), Reporter: rep, Slots: 1, Backlog: 4})
	rep.ModelLoaded()
	if !e.Ready() {
		t.Fatal("ready after load")
	}

	resp, err := e.Predict(context.Background(), types.PredictRequest{Input: payload(1, 2, 3)})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for i, want := range []float32{1, 2, 3} {
		if resp.Output.Data[i] != want {
			t.Fatalf("output[%d] = %v, want %v", i, resp.Output.Data[i], want)
		}
	}
	if resp.CorrelationID == "" {
		t.Fatal("server must assign a correlation id")
	}
	if !e.Ready() || !e.Live() {
		t.Fatal("ready and live throughout")
	}
}

func TestPredict_EchoesCallerCorrelationID(t *testing.T) {
	e := New(Config{Model: identityHandle(t, 3)})
	resp, err := e.Predict(context.Background(), types.PredictRequest{
		Input:         payload(1, 2, 3),
		CorrelationID: "abc-123",
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if resp.CorrelationID != "abc-123" {
		t.Fatalf("correlation id = %q", resp.CorrelationID)
	}
}

func TestPredict_DecodeErrorsPassThrough(t *testing.T) {
	e := New(Config{Model: identityHandle(t, 3)})
	_, err := e.Predict(context.Background(), types.PredictRequest{Input: payload(1, 2)})
	if err == nil {
		t.Fatal("expected schema mismatch")
	}
}

// faultingModel satisfies ModelInfo and fails fatally after n calls.
type faultingModel struct {
	n     int
	calls int
}

func (f *faultingModel) Infer(in tensor.Tensor) (tensor.Tensor, error) {
	f.calls++
	if f.calls > f.n {
		return tensor.Tensor{}, model.ErrBackendFault("device lost")
	}
	return in, nil
}

func (f *faultingModel) ParallelSafe() bool { return false }
func (f *faultingModel) ID() string         { return "faulty" }
func (f *faultingModel) FormatVersion() uint32 { return model.FormatVersion }
func (f *faultingModel) Device() string        { return "cpu" }
func (f *faultingModel) Signature() model.Signature {
	return model.Signature{InputDim: 1, OutputDim: 1}
}

func TestPredict_BackendFaultFlipsReadiness(t *testing.T) {
	rep := health.New(nil)
	e := New(Config{Model: &faultingModel{n: 2}, Reporter: rep, Slots: 1, Backlog: 2})
	rep.ModelLoaded()

	for i := 0; i < 2; i++ {
		if _, err := e.Predict(context.Background(), types.PredictRequest{Input: payload(1)}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	_, err := e.Predict(context.Background(), types.PredictRequest{Input: payload(1)})
	if err == nil || !model.IsBackendFatal(err) {
		t.Fatalf("err = %v, want backend fault", err)
	}
	if e.Ready() || e.Live() {
		t.Fatal("readiness and liveness must drop on the next health check")
	}
	_, err = e.Predict(context.Background(), types.PredictRequest{Input: payload(1)})
	if !executor.IsBackendUnavailable(err) {
		t.Fatalf("err = %v, want fail-fast backend unavailable", err)
	}
}

func TestPredict_RejectedDuringShutdown(t *testing.T) {
	rep := health.New(nil)
	e := New(Config{Model: identityHandle(t, 3), Reporter: rep})
	rep.ModelLoaded()
	if err := e.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	_, err := e.Predict(context.Background(), types.PredictRequest{Input: payload(1, 2, 3)})
	if !executor.IsUnavailable(err) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if e.Ready() {
		t.Fatal("not ready while shutting down")
	}
	if !e.Live() {
		t.Fatal("still live while draining")
	}
}

func TestPredict_DefaultDeadlineApplies(t *testing.T) {
	// A slow model plus a tiny default deadline must yield DeadlineExceeded.
	e := New(Config{
		Model:           &slowModel{delay: 200 * time.Millisecond},
		Slots:           1,
		Backlog:         1,
		DefaultDeadline: 20 * time.Millisecond,
	})
	_, err := e.Predict(context.Background(), types.PredictRequest{Input: payload(1)})
	if !executor.IsDeadlineExceeded(err) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

type slowModel struct{ delay time.Duration }

func (s *slowModel) Infer(in tensor.Tensor) (tensor.Tensor, error) {
	time.Sleep(s.delay)
	return in, nil
}

func (s *slowModel) ParallelSafe() bool         { return true }
func (s *slowModel) ID() string                 { return "slow" }
func (s *slowModel) FormatVersion() uint32      { return model.FormatVersion }
func (s *slowModel) Device() string             { return "cpu" }
func (s *slowModel) Signature() model.Signature { return model.Signature{InputDim: 1, OutputDim: 1} }

func TestStatus(t *testing.T) {
	rep := health.New(nil)
	e := New(Config{Model: identityHandle(t, 3), Reporter: rep, Slots: 2, Backlog: 8})
	rep.ModelLoaded()
	st := e.Status()
	if st.State != "ready" {
		t.Fatalf("state = %q", st.State)
	}
	if st.Model.ID != "identity-v1" || st.Model.InputDim != 3 {
		t.Fatalf("model = %+v", st.Model)
	}
	if st.Queue.Slots != 2 || st.Queue.BacklogCap != 8 {
		t.Fatalf("queue = %+v", st.Queue)
	}
	if st.Model.ParallelSafe {
		t.Fatal("default device is serialized")
	}
}
