package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"leopard/internal/bench"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func result(name string, end time.Time, checksum uint64) *bench.Result {
	return &bench.Result{
		BenchName:     name,
		Distribution:  bench.DistRandom,
		Size:          1000,
		Workers:       4,
		Threshold:     64,
		StartTime:     end.Add(-time.Second),
		EndTime:       end,
		Duration:      time.Second,
		Runs:          []bench.RunResult{{Run: 1, Duration: time.Millisecond, Checksum: checksum}},
		Deterministic: true,
		Checksum:      checksum,
		AvgLatency:    time.Millisecond,
	}
}

func TestSaveAndLatest(t *testing.T) {
	s := openStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := s.Save(result("quick", base, 1)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Save(result("quick", base.Add(time.Minute), 2)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	latest, err := s.Latest("quick")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest.Checksum != 2 {
		t.Errorf("expected latest checksum 2, got %d", latest.Checksum)
	}
	if !latest.EndTime.Equal(base.Add(time.Minute)) {
		t.Errorf("unexpected end time %v", latest.EndTime)
	}
}

func TestListOrder(t *testing.T) {
	s := openStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	// 保存順と時刻順を逆にする
	for i := 3; i >= 1; i-- {
		if err := s.Save(result("random", base.Add(time.Duration(i)*time.Hour), uint64(i))); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	list, err := s.List("random")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	var got []uint64
	for _, r := range list {
		got = append(got, r.Checksum)
	}
	if diff := cmp.Diff([]uint64{1, 2, 3}, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestSameTimestamp(t *testing.T) {
	s := openStore(t)
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := range 3 {
		if err := s.Save(result("quick", at, uint64(i))); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	list, err := s.List("quick")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("expected 3 entries, got %d", len(list))
	}
}

func TestNotFound(t *testing.T) {
	s := openStore(t)

	if _, err := s.Latest("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, err := s.List("missing")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
}

func TestSaveInvalid(t *testing.T) {
	s := openStore(t)

	if err := s.Save(nil); err == nil {
		t.Error("expected error for nil result")
	}
	if err := s.Save(&bench.Result{}); err == nil {
		t.Error("expected error for unnamed result")
	}
}

func TestRoundTrip(t *testing.T) {
	s := openStore(t)
	want := result("sorted", time.Date(2026, 3, 3, 3, 3, 3, 0, time.UTC), 99)
	want.TasksPerWorker = map[int]uint64{0: 5, 1: 7}
	want.Speedup = 2.5

	if err := s.Save(want); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := s.Latest("sorted")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if diff := cmp.Diff(*want, *got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestNamesAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	_ = s.Save(result("a", time.Now(), 1))
	_ = s.Save(result("b", time.Now(), 2))
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	names, err := s.Names()
	if err != nil {
		t.Fatalf("names failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("unexpected names (-want +got):\n%s", diff)
	}
	if s.Path() != path {
		t.Errorf("expected path %s, got %s", path, s.Path())
	}
}
