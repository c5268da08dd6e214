package bench

// QuickBench は動作確認用の小さなベンチ設定を返す
func QuickBench() Config {
	return Config{
		Name:                "quick",
		Description:         "Quick check on a small random input",
		Size:                10_000,
		Runs:                3,
		Distribution:        DistRandom,
		Seed:                1,
		SequentialThreshold: 256,
		Baseline:            true,
	}
}

// RandomBench は一様乱数入力のベンチ設定を返す
func RandomBench() Config {
	return Config{
		Name:                "random",
		Description:         "Uniformly random 64-bit integers",
		Size:                1_000_000,
		Runs:                5,
		Distribution:        DistRandom,
		Seed:                42,
		SequentialThreshold: 1000,
		Baseline:            true,
	}
}

// SortedBench は昇順済み入力のベンチ設定を返す
// 中央値ピボットなので分割は均等になる
func SortedBench() Config {
	return Config{
		Name:                "sorted",
		Description:         "Already ascending input",
		Size:                1_000_000,
		Runs:                5,
		Distribution:        DistSorted,
		Seed:                42,
		SequentialThreshold: 1000,
		Baseline:            true,
	}
}

// ReversedBench は降順入力のベンチ設定を返す
func ReversedBench() Config {
	return Config{
		Name:                "reversed",
		Description:         "Strictly descending input",
		Size:                1_000_000,
		Runs:                5,
		Distribution:        DistReversed,
		Seed:                42,
		SequentialThreshold: 1000,
		Baseline:            true,
	}
}

// DuplicatesBench は重複の多い入力のベンチ設定を返す
func DuplicatesBench() Config {
	return Config{
		Name:                "duplicates",
		Description:         "Heavy duplicates, 100 distinct values",
		Size:                1_000_000,
		Runs:                5,
		Distribution:        DistDuplicates,
		Seed:                42,
		SequentialThreshold: 1000,
		Baseline:            true,
	}
}

// StressBench は大きな入力と多数の実行回数のベンチ設定を返す
// 閾値を小さくしてタスク数を増やす
func StressBench() Config {
	return Config{
		Name:                "stress",
		Description:         "Large random input with fine-grained tasks",
		Size:                5_000_000,
		Runs:                10,
		Distribution:        DistRandom,
		Seed:                7,
		SequentialThreshold: 64,
		Baseline:            true,
	}
}

// GetPreset は名前からプリセットを取得する
func GetPreset(name string) (Config, bool) {
	presets := map[string]func() Config{
		"quick":      QuickBench,
		"random":     RandomBench,
		"sorted":     SortedBench,
		"reversed":   ReversedBench,
		"duplicates": DuplicatesBench,
		"stress":     StressBench,
	}

	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"quick", "random", "sorted", "reversed", "duplicates", "stress"}
}
