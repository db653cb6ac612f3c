package exec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/light-player/fxc/ir"
)

// nopBackend counts calls; the pool tests only care about dispatch.
type nopBackend struct{ calls atomic.Int64 }

func (b *nopBackend) CallVoid(string, []uint32) error { b.calls.Add(1); return nil }
func (b *nopBackend) CallScalar(string, ir.Kind, []uint32) (uint32, error) {
	b.calls.Add(1)
	return 0, nil
}
func (b *nopBackend) CallVec(string, int, []uint32) ([]uint32, error)    { return nil, nil }
func (b *nopBackend) CallMat(string, int, int, []uint32) ([]uint32, error) { return nil, nil }
func (b *nopBackend) Mode() RunMode                                      { return ModeFixed }
func (b *nopBackend) Close() error                                       { return nil }

func TestPoolRunsEveryJob(t *testing.T) {
	var ran atomic.Int64
	pool := NewPool(4, func() (Executable, error) { return &nopBackend{}, nil })

	jobs := make([]Job, 100)
	for i := range jobs {
		jobs[i] = func(x Executable) error {
			ran.Add(1)
			return x.CallVoid("f", nil)
		}
	}
	results := pool.Run(context.Background(), jobs)
	if len(results) != 100 {
		t.Fatalf("got %d results, want 100", len(results))
	}
	for i, err := range results {
		if err != nil {
			t.Errorf("job %d: %v", i, err)
		}
	}
	if ran.Load() != 100 {
		t.Errorf("ran %d jobs, want 100", ran.Load())
	}
}

func TestPoolJobErrorsAreIndexed(t *testing.T) {
	pool := NewPool(2, func() (Executable, error) { return &nopBackend{}, nil })
	boom := errors.New("boom")
	jobs := []Job{
		func(Executable) error { return nil },
		func(Executable) error { return boom },
		func(Executable) error { return nil },
	}
	results := pool.Run(context.Background(), jobs)
	if results[0] != nil || results[2] != nil {
		t.Errorf("clean jobs reported errors: %v", results)
	}
	if !errors.Is(results[1], boom) {
		t.Errorf("job 1 error = %v, want boom", results[1])
	}
}

func TestPoolCatchesPanics(t *testing.T) {
	pool := NewPool(2, func() (Executable, error) { return &nopBackend{}, nil })
	jobs := []Job{
		func(Executable) error { panic("shader exploded") },
		func(Executable) error { return nil },
	}
	results := pool.Run(context.Background(), jobs)
	if results[0] == nil || !strings.Contains(results[0].Error(), "shader exploded") {
		t.Errorf("panic not reported: %v", results[0])
	}
	if results[1] != nil {
		t.Errorf("healthy job failed: %v", results[1])
	}
}

func TestPoolBackendSetupFailure(t *testing.T) {
	pool := NewPool(1, func() (Executable, error) {
		return nil, fmt.Errorf("no emulator")
	})
	jobs := []Job{
		func(Executable) error { return nil },
		func(Executable) error { return nil },
		func(Executable) error { return nil },
	}
	results := pool.Run(context.Background(), jobs)
	for i, err := range results {
		if err == nil || !strings.Contains(err.Error(), "backend setup") {
			t.Errorf("job %d: setup failure not surfaced: %v", i, err)
		}
	}
}

func TestPoolCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(1, func() (Executable, error) { return &nopBackend{}, nil })

	// The first job cancels and then keeps the only worker busy, so the
	// dispatcher must observe ctx before it can hand out the rest.
	jobs := make([]Job, 10)
	jobs[0] = func(Executable) error {
		cancel()
		time.Sleep(100 * time.Millisecond)
		return nil
	}
	for i := 1; i < len(jobs); i++ {
		jobs[i] = func(Executable) error { return nil }
	}
	results := pool.Run(ctx, jobs)
	if results[0] != nil {
		t.Errorf("job 0 = %v, want nil (in-flight calls are never interrupted)", results[0])
	}
	for i := 1; i < len(results); i++ {
		if !errors.Is(results[i], context.Canceled) {
			t.Errorf("job %d = %v, want context.Canceled", i, results[i])
		}
	}
}

func TestEncodeArgs(t *testing.T) {
	params := []ir.Param{
		{Kind: ir.KindFloat32},
		{Kind: ir.KindUInt32, Role: ir.RoleOutBuffer},
		{Kind: ir.KindInt32},
	}
	words, err := EncodeArgs(ModeFixed, params, []float64{1.5, -3})
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2 (buffer slot is backend-supplied)", len(words))
	}
	if int32(words[0]) != 3<<15 {
		t.Errorf("fixed 1.5 = %#x, want %#x", words[0], 3<<15)
	}
	if int32(words[1]) != -3 {
		t.Errorf("int -3 = %#x", words[1])
	}

	if _, err := EncodeArgs(ModeFixed, params, []float64{1}); err == nil {
		t.Error("arity mismatch not reported")
	}
}

func TestScalarRoundTrip(t *testing.T) {
	tests := []struct {
		mode RunMode
		kind ir.Kind
		v    float64
	}{
		{ModeFloat, ir.KindFloat32, 2.5},
		{ModeFixed, ir.KindFloat32, 2.5},
		{ModeFixed, ir.KindFloat32, -0.25},
		{ModeFloat, ir.KindInt32, -42},
		{ModeFloat, ir.KindBool8, 1},
	}
	for _, tt := range tests {
		w := EncodeScalar(tt.mode, tt.kind, tt.v)
		if got := DecodeScalar(tt.mode, tt.kind, w); got != tt.v {
			t.Errorf("%v/%v: %g -> %#x -> %g", tt.mode, tt.kind, tt.v, w, got)
		}
	}
}
