// Package main is the entry point for leopard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leopard/internal/api"
	"leopard/internal/bench"
	"leopard/internal/config"
	"leopard/internal/history"
	"leopard/internal/logger"
	"leopard/internal/psort"
)

var (
	version = "dev"
)

// options はコマンドラインフラグの値
type options struct {
	configFile  string
	presetName  string
	size        int
	runs        int
	dist        string
	seed        uint64
	workers     int
	threshold   int
	baseline    bool
	input       string
	output      string
	historyPath string
	logLevel    string
	serverAddr  string

	// 明示的に指定されたフラグ
	set map[string]bool
}

func main() {
	var opts options

	// フラグ定義
	flag.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	flag.StringVar(&opts.presetName, "preset", "", "ベンチプリセット名 (quick, random, sorted, reversed, duplicates, stress)")
	flag.IntVar(&opts.size, "size", 0, "入力要素数")
	flag.IntVar(&opts.runs, "runs", 0, "ソート実行回数")
	flag.StringVar(&opts.dist, "dist", "", "入力分布 (random, sorted, reversed, duplicates, sawtooth, constant)")
	flag.Uint64Var(&opts.seed, "seed", 0, "乱数シード")
	flag.IntVar(&opts.workers, "workers", 0, "ワーカー数 (0でCPU数)")
	flag.IntVar(&opts.threshold, "threshold", 0, "直接ソートに切り替える要素数")
	flag.BoolVar(&opts.baseline, "baseline", true, "slices.Sort と比較する")
	flag.StringVar(&opts.input, "input", "", "ソートする整数ファイル (1行1整数)")
	flag.StringVar(&opts.output, "output", "", "ソート結果の出力先 (省略時は標準出力)")
	flag.StringVar(&opts.historyPath, "history", "", "ベンチ結果を保存する bbolt ファイル")
	flag.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	flag.StringVar(&opts.serverAddr, "addr", config.DefaultAddr, "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	listPresets := flag.Bool("list-presets", false, "利用可能なプリセットを表示")
	showVersion := flag.Bool("version", false, "バージョンを表示")
	serverMode := flag.Bool("server", false, "HTTP サーバーモードで起動")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `leopard - Dynamic work-queue parallel sort engine

Usage:
  leopard [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # プリセットベンチを実行
  leopard --preset quick

  # 設定ファイルから実行
  leopard --config leopard.yaml

  # フラグでカスタマイズ
  leopard --preset random --size 5000000 --workers 8 --threshold 500

  # ファイルをソート
  leopard --input numbers.txt --output sorted.txt

  # プリセット一覧を表示
  leopard --list-presets

  # サーバーモードで起動
  leopard --server --addr :3000
`)
	}

	flag.Parse()

	opts.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	// バージョン表示
	if *showVersion {
		fmt.Printf("leopard version %s\n", version)
		return
	}

	// プリセット一覧表示
	if *listPresets {
		printPresets()
		return
	}

	fileConfig, err := loadConfig(opts)
	if err != nil {
		logger.Errorf("設定エラー: %v", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	switch {
	case *serverMode:
		err = runServer(ctx, fileConfig)
	case opts.input != "":
		err = runSort(fileConfig, opts)
	default:
		err = runBench(ctx, fileConfig)
	}
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

// loadConfig は設定ファイルを読み込み、フラグでオーバーライドする
func loadConfig(opts options) (*config.FileConfig, error) {
	fileConfig := &config.FileConfig{}

	// 1. 設定ファイルから読み込み
	if opts.configFile != "" {
		loaded, err := config.LoadFile(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		fileConfig = loaded
	}

	// 2. フラグでオーバーライド
	if opts.presetName != "" {
		fileConfig.Bench.Preset = opts.presetName
	} else if opts.configFile == "" {
		// デフォルト（quickプリセット）
		fileConfig.Bench.Preset = "quick"
	}
	if opts.size > 0 {
		fileConfig.Bench.Size = opts.size
	}
	if opts.runs > 0 {
		fileConfig.Bench.Runs = opts.runs
	}
	if opts.dist != "" {
		fileConfig.Bench.Distribution = opts.dist
	}
	if opts.seed != 0 {
		fileConfig.Bench.Seed = opts.seed
	}
	if opts.workers > 0 {
		fileConfig.Engine.Workers = opts.workers
	}
	if opts.threshold > 0 {
		fileConfig.Engine.SequentialThreshold = opts.threshold
	}
	// フラグが明示的に指定された場合のみオーバーライド
	if opts.set["baseline"] {
		baseline := opts.baseline
		fileConfig.Bench.Baseline = &baseline
	}
	if opts.historyPath != "" {
		fileConfig.History.Path = opts.historyPath
	}
	if opts.logLevel != "" {
		fileConfig.Log.Level = opts.logLevel
	}
	if opts.set["addr"] || fileConfig.Server.Addr == "" {
		fileConfig.Server.Addr = opts.serverAddr
	}

	if err := fileConfig.Validate(); err != nil {
		return nil, fmt.Errorf("設定検証エラー: %w", err)
	}

	level, _ := fileConfig.LogLevel()
	logger.Default.SetLevel(level)

	return fileConfig, nil
}

// signalContext は SIGINT/SIGTERM でキャンセルされるコンテキストを返す
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n中断シグナルを受信、終了中...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// openHistory は履歴ストアを開く。パスが空なら nil を返す
func openHistory(fileConfig *config.FileConfig) (*history.Store, error) {
	if fileConfig.History.Path == "" {
		return nil, nil
	}
	store, err := history.Open(fileConfig.History.Path)
	if err != nil {
		return nil, fmt.Errorf("履歴ファイルを開けません: %w", err)
	}
	return store, nil
}

// runBench はベンチを実行してレポートを出力する
func runBench(ctx context.Context, fileConfig *config.FileConfig) error {
	benchConfig, err := fileConfig.ToBenchConfig()
	if err != nil {
		return fmt.Errorf("設定変換エラー: %w", err)
	}

	store, err := openHistory(fileConfig)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	fmt.Println("leopard - Dynamic work-queue parallel sort engine")
	fmt.Println("==================================================")
	fmt.Printf("Bench: %s\n", benchConfig.Name)
	fmt.Printf("Size: %d (%s), Runs: %d\n", benchConfig.Size, benchConfig.Distribution, benchConfig.Runs)
	fmt.Printf("Workers: %d, Threshold: %d\n", benchConfig.Workers, benchConfig.SequentialThreshold)
	fmt.Println("==================================================")
	fmt.Println()

	engine := bench.New(benchConfig)
	result, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("ベンチ実行エラー: %w", err)
	}

	// レポート出力
	fmt.Println(result.Report())

	if store != nil {
		if prev, err := store.Latest(result.BenchName); err == nil && prev.MinLatency > 0 {
			fmt.Printf("Previous run (%s): min %v, now %v\n",
				prev.EndTime.Format("2006-01-02 15:04:05"),
				prev.MinLatency.Round(time.Microsecond),
				result.MinLatency.Round(time.Microsecond))
		}
		if err := store.Save(result); err != nil {
			return fmt.Errorf("履歴保存エラー: %w", err)
		}
		logger.Infof("Result saved to %s", store.Path())
	}

	return nil
}

// runSort は整数ファイルをソートして書き出す
func runSort(fileConfig *config.FileConfig, opts options) error {
	// ソート結果と混ざらないようにログは標準エラーへ
	logger.Default.SetOutput(os.Stderr)

	in, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("入力ファイルを開けません: %w", err)
	}
	data, err := bench.ReadInts(in)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("入力ファイル読み込みエラー: %w", err)
	}

	sortConfig := fileConfig.ToSortConfig()
	sorter := psort.New(func(a, b int64) bool { return a < b }, sortConfig)

	start := time.Now()
	if err := sorter.Sort(psort.SliceSequence[int64](data)); err != nil {
		return fmt.Errorf("ソートエラー: %w", err)
	}
	logger.Infof("Sorted %d values in %v (%d workers, threshold %d)",
		len(data), time.Since(start).Round(time.Microsecond), sorter.WorkerCount(), sorter.SequentialThreshold())

	out := os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("出力ファイルを作成できません: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := bench.WriteInts(out, data); err != nil {
		return fmt.Errorf("出力エラー: %w", err)
	}
	return nil
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なベンチプリセット:")
	fmt.Println()

	for _, name := range bench.ListPresets() {
		p, _ := bench.GetPreset(name)
		fmt.Printf("  %-12s %-10s %9d x%-3d %s\n", p.Name, p.Distribution, p.Size, p.Runs, p.Description)
	}

	fmt.Println()
	fmt.Println("使用例: leopard --preset quick")
}

// runServer は HTTP サーバーを起動する
func runServer(ctx context.Context, fileConfig *config.FileConfig) error {
	store, err := openHistory(fileConfig)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	addr := fileConfig.ServerAddr()
	fmt.Println("leopard - Sort Server")
	fmt.Println("=====================")
	fmt.Printf("Starting server on http://%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	server := api.NewServer(api.Config{
		Addr:               addr,
		Sort:               fileConfig.ToSortConfig(),
		MaxConcurrentSorts: fileConfig.MaxConcurrentSorts(),
		History:            store,
		Logger:             logger.Default,
	})
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("サーバーエラー: %w", err)
	}
	return nil
}
