package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"leopard/internal/bench"
	"leopard/internal/events"
	"leopard/internal/history"
	"leopard/internal/logger"
	"leopard/internal/metrics"
	"leopard/internal/psort"
	"leopard/internal/worker"

	"golang.org/x/net/websocket"
)

// maxBodyBytes は /api/sort のリクエストボディ上限
const maxBodyBytes = 64 << 20

// Config はAPIサーバーの設定
type Config struct {
	Addr               string         // 待ち受けアドレス
	Sort               psort.Config   // リクエストで未指定の項目に使う既定のエンジン設定
	MaxConcurrentSorts int            // 同時に実行するソート数（0以下でCPU数）
	History            *history.Store // nil ならベンチ結果を保存しない
	Logger             *logger.Logger // nil なら logger.Default
}

// Server はAPIサーバー
type Server struct {
	config    Config
	pool      *worker.Pool
	eventBus  *events.Bus
	recorder  *metrics.Recorder
	log       *logger.Logger
	startTime time.Time
	sortSeq   atomic.Uint64

	mu          sync.RWMutex
	benchEngine *bench.Engine
	benchConfig bench.Config
	running     bool
	lastResult  *bench.Result
	lastErr     error
	wsClients   map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(config Config) *Server {
	if config.Logger == nil {
		config.Logger = logger.Default
	}
	log := config.Logger.Named("api")

	pool := worker.NewPool(config.MaxConcurrentSorts)
	pool.SetLogger(config.Logger)

	return &Server{
		config:    config,
		pool:      pool,
		eventBus:  events.NewBus(),
		recorder:  metrics.New(),
		log:       log,
		startTime: time.Now(),
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// EventBus はサーバーのイベントバスを返す
func (s *Server) EventBus() *events.Bus {
	return s.eventBus
}

// Handler はワーカープールとイベント配信を ctx に結び付けて起動し、ルーティング済みのハンドラを返す。
// ctx が終了するとプールは停止する
func (s *Server) Handler(ctx context.Context) http.Handler {
	s.pool.Start(ctx)

	// バックグラウンドでイベント配信
	go s.forwardEvents(ctx)

	go func() {
		<-ctx.Done()
		s.pool.Stop()
	}()

	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/sort", s.handleSort)
	mux.HandleFunc("/api/bench/start", s.handleBenchStart)
	mux.HandleFunc("/api/bench/result", s.handleBenchResult)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/history", s.handleHistory)

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始し、ctx が終了するまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("API Server starting on http://%s", s.config.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Infof("API Server stopped")
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	BenchRunning        bool   `json:"bench_running"`
	BenchName           string `json:"bench_name,omitempty"`
	InFlightSorts       int    `json:"in_flight_sorts"`
	MaxConcurrentSorts  int    `json:"max_concurrent_sorts"`
	SortWorkers         int    `json:"sort_workers"`
	SequentialThreshold int    `json:"sequential_threshold"`
	Subscribers         int    `json:"subscribers"`
	Uptime              string `json:"uptime"`
}

func (s *Server) status() StatusResponse {
	sortCfg := s.sorterConfig(0, 0)

	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := StatusResponse{
		BenchRunning:        s.running,
		InFlightSorts:       s.pool.InFlight(),
		MaxConcurrentSorts:  s.pool.NumWorkers(),
		SortWorkers:         sortCfg.WorkerCount,
		SequentialThreshold: sortCfg.SequentialThreshold,
		Subscribers:         len(s.wsClients),
		Uptime:              time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.benchConfig.Name != "" {
		resp.BenchName = s.benchConfig.Name
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, s.recorder.Snapshot())
}

// SortRequest はソートリクエスト
type SortRequest struct {
	Values              []int64 `json:"values"`
	Descending          bool    `json:"descending,omitempty"`
	Workers             int     `json:"workers,omitempty"`
	SequentialThreshold int     `json:"sequential_threshold,omitempty"`
}

// SortResponse はソートレスポンス
type SortResponse struct {
	SortID         string  `json:"sort_id"`
	Values         []int64 `json:"values"`
	Elements       int     `json:"elements"`
	Workers        int     `json:"workers"`
	Threshold      int     `json:"sequential_threshold"`
	DurationMs     float64 `json:"duration_ms"`
	TasksQueued    uint64  `json:"tasks_queued"`
	TasksSplit     uint64  `json:"tasks_split"`
	TasksSorted    uint64  `json:"tasks_sorted"`
	PeakQueueDepth int     `json:"peak_queue_depth"`
}

// sorterConfig はリクエストの指定を既定の設定に重ねる
func (s *Server) sorterConfig(workers, threshold int) psort.Config {
	cfg := s.config.Sort
	if workers > 0 {
		cfg.WorkerCount = workers
	}
	if threshold > 0 {
		cfg.SequentialThreshold = threshold
	}
	if cfg.WorkerCount <= 0 || cfg.SequentialThreshold <= 0 {
		def := psort.DefaultConfig()
		if cfg.WorkerCount <= 0 {
			cfg.WorkerCount = def.WorkerCount
		}
		if cfg.SequentialThreshold <= 0 {
			cfg.SequentialThreshold = def.SequentialThreshold
		}
	}
	cfg.Logger = s.config.Logger
	return cfg
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SortRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Workers < 0 || req.SequentialThreshold < 0 {
		http.Error(w, "workers and sequential_threshold must be non-negative", http.StatusBadRequest)
		return
	}

	sortID := fmt.Sprintf("sort-%d", s.sortSeq.Add(1))
	perSort := metrics.New()

	cfg := s.sorterConfig(req.Workers, req.SequentialThreshold)
	cfg.Observer = psort.Observers(s.recorder, perSort, events.NewPublisher(s.eventBus, sortID))

	less := func(a, b int64) bool { return a < b }
	if req.Descending {
		less = func(a, b int64) bool { return a > b }
	}
	sorter := psort.New(less, cfg)

	values := req.Values
	if values == nil {
		values = []int64{}
	}

	var elapsed time.Duration
	err := s.pool.Do(r.Context(), func(context.Context) error {
		start := time.Now()
		err := sorter.Sort(psort.SliceSequence[int64](values))
		elapsed = time.Since(start)
		return err
	})

	var fault *psort.WorkerFault
	switch {
	case err == nil:
	case errors.As(err, &fault):
		s.log.Errorf("%s failed: %v", sortID, fault)
		http.Error(w, fmt.Sprintf("sort failed: %v", fault), http.StatusInternalServerError)
		return
	case errors.Is(err, worker.ErrPoolStopped):
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	default:
		http.Error(w, fmt.Sprintf("sort aborted: %v", err), http.StatusServiceUnavailable)
		return
	}

	s.recorder.RecordRun(elapsed, len(values))
	s.log.Debugf("%s sorted %d values in %v", sortID, len(values), elapsed)

	snap := perSort.Snapshot()
	s.writeJSON(w, http.StatusOK, SortResponse{
		SortID:         sortID,
		Values:         values,
		Elements:       len(values),
		Workers:        sorter.WorkerCount(),
		Threshold:      sorter.SequentialThreshold(),
		DurationMs:     float64(elapsed) / float64(time.Millisecond),
		TasksQueued:    snap.TasksQueued,
		TasksSplit:     snap.TasksSplit,
		TasksSorted:    snap.TasksSorted,
		PeakQueueDepth: snap.PeakQueueDepth,
	})
}

// BenchRequest はベンチ開始リクエスト
type BenchRequest struct {
	Preset string `json:"preset"`
	Size   int    `json:"size,omitempty"`
	Runs   int    `json:"runs,omitempty"`
}

func (s *Server) handleBenchStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BenchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// プリセット取得
	config := bench.QuickBench()
	if req.Preset != "" {
		preset, ok := bench.GetPreset(req.Preset)
		if !ok {
			http.Error(w, fmt.Sprintf("Unknown preset: %s", req.Preset), http.StatusBadRequest)
			return
		}
		config = preset
	}

	// オーバーライド
	if req.Size > 0 {
		config.Size = req.Size
	}
	if req.Runs > 0 {
		config.Runs = req.Runs
	}
	if s.config.Sort.WorkerCount > 0 {
		config.Workers = s.config.Sort.WorkerCount
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "Bench already running", http.StatusConflict)
		return
	}

	engine := bench.New(config)
	engine.SetEventBus(s.eventBus)
	engine.SetLogger(s.config.Logger)

	s.benchConfig = config
	s.benchEngine = engine
	s.running = true
	s.mu.Unlock()

	// バックグラウンドで実行
	if !s.pool.Submit(func(ctx context.Context) error {
		s.runBench(ctx, engine)
		return nil
	}) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		http.Error(w, "Server is busy", http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "bench": config.Name})
}

func (s *Server) runBench(ctx context.Context, engine *bench.Engine) {
	result, err := engine.Run(ctx)

	s.mu.Lock()
	s.running = false
	s.lastResult = result
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.log.Errorf("Bench failed: %v", err)
	} else {
		s.log.Infof("Bench completed: %d runs of %d elements", len(result.Runs), result.Size)
		if s.config.History != nil {
			if err := s.config.History.Save(result); err != nil {
				s.log.Warnf("Failed to save bench history: %v", err)
			}
		}
	}

	msg := map[string]any{"type": "bench_complete", "result": result}
	if err != nil {
		msg["error"] = err.Error()
	}
	s.broadcast(msg)
}

// BenchResultResponse はベンチ結果レスポンス
type BenchResultResponse struct {
	Running bool          `json:"running"`
	Result  *bench.Result `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func (s *Server) handleBenchResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	resp := BenchResultResponse{Running: s.running, Result: s.lastResult}
	if s.lastErr != nil {
		resp.Error = s.lastErr.Error()
	}
	started := s.benchEngine != nil
	s.mu.RUnlock()

	if !started {
		http.Error(w, "No bench has been run", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Size         int                `json:"size"`
	Runs         int                `json:"runs"`
	Distribution bench.Distribution `json:"distribution"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range bench.ListPresets() {
		config, _ := bench.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:         config.Name,
			Description:  config.Description,
			Size:         config.Size,
			Runs:         config.Runs,
			Distribution: config.Distribution,
		})
	}

	s.writeJSON(w, http.StatusOK, presets)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.config.History == nil {
		http.Error(w, "History is not enabled", http.StatusNotFound)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		names, err := s.config.History.Names()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, names)
		return
	}

	results, err := s.config.History.List(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

// clientCount は接続中の WebSocket クライアント数を返す
func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// forwardEvents はイベントバスの内容を WebSocket クライアントに配信する
func (s *Server) forwardEvents(ctx context.Context) {
	ch := s.eventBus.Subscribe()
	defer s.eventBus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(ev)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON: %v", err)
	}
}
