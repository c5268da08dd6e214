package bench

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Distribution は入力データの並び方を表す
type Distribution string

const (
	DistRandom     Distribution = "random"     // 一様乱数
	DistSorted     Distribution = "sorted"     // 昇順済み
	DistReversed   Distribution = "reversed"   // 降順
	DistDuplicates Distribution = "duplicates" // 100 種類の値のみ
	DistSawtooth   Distribution = "sawtooth"   // 短い昇順列の繰り返し
	DistConstant   Distribution = "constant"   // 全要素同じ値
)

// Distributions は利用可能な分布を返す
func Distributions() []Distribution {
	return []Distribution{DistRandom, DistSorted, DistReversed, DistDuplicates, DistSawtooth, DistConstant}
}

// ParseDistribution は文字列を Distribution に変換する
func ParseDistribution(s string) (Distribution, error) {
	d := Distribution(strings.ToLower(strings.TrimSpace(s)))
	if d == "" {
		return DistRandom, nil
	}
	for _, known := range Distributions() {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown distribution: %s", s)
}

// Generate は seed から再現可能なデータを生成する
func Generate(d Distribution, n int, seed uint64) ([]int64, error) {
	if n < 0 {
		return nil, fmt.Errorf("size must be non-negative, got %d", n)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	data := make([]int64, n)

	switch d {
	case DistRandom, "":
		for i := range data {
			data[i] = rng.Int64()
		}
	case DistSorted:
		for i := range data {
			data[i] = int64(i)
		}
	case DistReversed:
		for i := range data {
			data[i] = int64(n - i)
		}
	case DistDuplicates:
		for i := range data {
			data[i] = rng.Int64N(100)
		}
	case DistSawtooth:
		for i := range data {
			data[i] = int64(i % 64)
		}
	case DistConstant:
		for i := range data {
			data[i] = 42
		}
	default:
		return nil, fmt.Errorf("unknown distribution: %s", d)
	}
	return data, nil
}

// ReadInts は 1 行 1 整数のテキストを読み込む。空行は無視する
func ReadInts(r io.Reader) ([]int64, error) {
	var data []int64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), bufio.MaxScanTokenSize)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		data = append(data, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

// WriteInts は 1 行 1 整数で書き出す
func WriteInts(w io.Writer, data []int64) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	buf := make([]byte, 0, 24)
	for _, v := range data {
		buf = strconv.AppendInt(buf[:0], v, 10)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Checksum は順序込みのハッシュを返す。同じ並びなら同じ値になる
func Checksum(data []int64) uint64 {
	d := xxhash.New()
	var b [8]byte
	for _, v := range data {
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		_, _ = d.Write(b[:])
	}
	return d.Sum64()
}

// MultisetHash は順序に依存しないハッシュを返す。並べ替えても値は変わらない
func MultisetHash(data []int64) uint64 {
	var sum uint64
	var b [8]byte
	for _, v := range data {
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		sum += xxhash.Sum64(b[:])
	}
	return sum
}
