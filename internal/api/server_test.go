package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/websocket"

	"leopard/internal/bench"
	"leopard/internal/history"
	"leopard/internal/logger"
	"leopard/internal/metrics"
	"leopard/internal/psort"
)

func newTestServer(t *testing.T, config Config) (*Server, *httptest.Server) {
	t.Helper()
	if config.Logger == nil {
		config.Logger = logger.New(io.Discard, logger.LevelError)
	}
	if config.MaxConcurrentSorts == 0 {
		config.MaxConcurrentSorts = 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(config)
	ts := httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return srv, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return v
}

func TestHandleSort(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	values := []int64{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	resp := postJSON(t, ts.URL+"/api/sort", SortRequest{
		Values:              values,
		Workers:             3,
		SequentialThreshold: 2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	got := decode[SortResponse](t, resp)
	if diff := cmp.Diff([]int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got.Values); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
	if got.Workers != 3 || got.Threshold != 2 {
		t.Errorf("expected settings 3/2, got %d/%d", got.Workers, got.Threshold)
	}
	if got.Elements != 10 {
		t.Errorf("expected 10 elements, got %d", got.Elements)
	}
	if got.TasksQueued != 1+2*got.TasksSplit {
		t.Errorf("queued %d tasks for %d splits", got.TasksQueued, got.TasksSplit)
	}
	if !strings.HasPrefix(got.SortID, "sort-") {
		t.Errorf("unexpected sort id %s", got.SortID)
	}
}

func TestHandleSortDescending(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	values, _ := bench.Generate(bench.DistRandom, 5000, 3)
	resp := postJSON(t, ts.URL+"/api/sort", SortRequest{Values: values, Descending: true, SequentialThreshold: 100})
	got := decode[SortResponse](t, resp)

	want := slices.Clone(values)
	slices.Sort(want)
	slices.Reverse(want)
	if diff := cmp.Diff(want, got.Values); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestHandleSortEmpty(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp := postJSON(t, ts.URL+"/api/sort", SortRequest{})
	got := decode[SortResponse](t, resp)
	if len(got.Values) != 0 || got.TasksQueued != 0 {
		t.Errorf("expected no tasks for empty input, got %+v", got)
	}
}

func TestHandleSortBadRequest(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Post(ts.URL+"/api/sort", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/sort", SortRequest{Values: []int64{1}, Workers: -1})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for negative workers, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	for _, path := range []string{"/api/sort", "/api/bench/start"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", path, resp.StatusCode)
		}
	}

	resp := postJSON(t, ts.URL+"/api/status", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST /api/status, got %d", resp.StatusCode)
	}
}

func TestHandleMetrics(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	for range 3 {
		resp := postJSON(t, ts.URL+"/api/sort", SortRequest{Values: []int64{3, 2, 1}})
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/api/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	snap := decode[metrics.Snapshot](t, resp)
	if snap.Sorts != 3 {
		t.Errorf("expected 3 sorts, got %d", snap.Sorts)
	}
	if snap.Runs != 3 {
		t.Errorf("expected 3 runs, got %d", snap.Runs)
	}
}

func TestHandleStatus(t *testing.T) {
	_, ts := newTestServer(t, Config{
		Sort:               psort.Config{WorkerCount: 5, SequentialThreshold: 77},
		MaxConcurrentSorts: 3,
	})

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	status := decode[StatusResponse](t, resp)

	if status.BenchRunning {
		t.Error("expected no bench running")
	}
	if status.SortWorkers != 5 || status.SequentialThreshold != 77 {
		t.Errorf("unexpected engine settings %+v", status)
	}
	if status.MaxConcurrentSorts != 3 {
		t.Errorf("expected 3 concurrent sorts, got %d", status.MaxConcurrentSorts)
	}
}

func TestHandlePresets(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/api/presets")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	presets := decode[[]PresetInfo](t, resp)

	var names []string
	for _, p := range presets {
		names = append(names, p.Name)
		if p.Description == "" {
			t.Errorf("preset %s has no description", p.Name)
		}
	}
	if diff := cmp.Diff(bench.ListPresets(), names); diff != "" {
		t.Errorf("unexpected presets (-want +got):\n%s", diff)
	}
}

func waitBench(t *testing.T, url string) BenchResultResponse {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		resp, err := http.Get(url + "/api/bench/result")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode == http.StatusOK {
			result := decode[BenchResultResponse](t, resp)
			if !result.Running {
				return result
			}
		} else {
			resp.Body.Close()
		}

		select {
		case <-deadline:
			t.Fatal("timeout waiting for bench to finish")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBenchStartAndResult(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	defer store.Close()

	_, ts := newTestServer(t, Config{History: store})

	// 実行前は結果なし
	resp, err := http.Get(ts.URL + "/api/bench/result")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 before any bench, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/bench/start", BenchRequest{Preset: "quick", Size: 2000, Runs: 2})
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	result := waitBench(t, ts.URL)
	if result.Error != "" {
		t.Fatalf("bench failed: %s", result.Error)
	}
	if result.Result == nil || result.Result.Size != 2000 || len(result.Result.Runs) != 2 {
		t.Fatalf("unexpected result %+v", result.Result)
	}
	if !result.Result.Deterministic {
		t.Error("expected deterministic output")
	}

	saved, err := store.Latest("quick")
	if err != nil {
		t.Fatalf("expected result in history: %v", err)
	}
	if saved.Checksum != result.Result.Checksum {
		t.Error("saved checksum differs from reported one")
	}

	resp, err = http.Get(ts.URL + "/api/history?name=quick")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	list := decode[[]bench.Result](t, resp)
	if len(list) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(list))
	}
}

func TestBenchStartUnknownPreset(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp := postJSON(t, ts.URL+"/api/bench/start", BenchRequest{Preset: "nope"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBenchStartConflict(t *testing.T) {
	srv, ts := newTestServer(t, Config{})

	srv.mu.Lock()
	srv.running = true
	srv.mu.Unlock()

	resp := postJSON(t, ts.URL+"/api/bench/start", BenchRequest{Preset: "quick"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
}

func TestHistoryDisabled(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/api/history")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWebSocketEvents(t *testing.T) {
	srv, ts := newTestServer(t, Config{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, err := websocket.Dial(wsURL, "", ts.URL)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()

	// ハンドラに登録されるまで待つ
	deadline := time.Now().Add(time.Second)
	for srv.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client was not registered")
		}
		time.Sleep(time.Millisecond)
	}

	resp := postJSON(t, ts.URL+"/api/sort", SortRequest{Values: []int64{2, 1}})
	got := decode[SortResponse](t, resp)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			t.Fatalf("expected sort_completed event: %v", err)
		}
		var ev struct {
			Type   string `json:"type"`
			SortID string `json:"sort_id"`
		}
		if err := json.Unmarshal([]byte(msg), &ev); err != nil {
			t.Fatalf("invalid message %q: %v", msg, err)
		}
		if ev.Type == "sort_completed" {
			if ev.SortID != got.SortID {
				t.Errorf("expected sort id %s, got %s", got.SortID, ev.SortID)
			}
			return
		}
	}
}
