// Package bench はソートエンジンのベンチマーク実行機能を提供する。
//
// ベンチエンジンは入力データを一度生成し、そのコピーを指定回数ソートして
// 所要時間とタスク統計を集計する。各実行の出力は検証され、
// 全実行の出力が一致したかどうかもレポートに含まれる。
//
// # 機能
//
// - 再現可能な入力データ生成（seed 指定）
// - 1 行 1 整数のテキスト入出力
// - 出力の昇順・並べ替え検証とチェックサム
// - slices.Sort との比較
// - 実行結果のレポート生成
//
// # プリセット
//
// - quick: 小さな乱数入力での動作確認
// - random: 100 万要素の一様乱数
// - sorted: 昇順済み入力
// - reversed: 降順入力
// - duplicates: 重複の多い入力
// - stress: 大きな入力と細かいタスク
//
// # 使用例
//
//	config, _ := bench.GetPreset("random")
//	engine := bench.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package bench
