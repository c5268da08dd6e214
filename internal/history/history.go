package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"leopard/internal/bench"
)

// ErrNotFound は指定したベンチの記録がない場合に返る
var ErrNotFound = errors.New("no bench history found")

// Store はベンチ結果を bbolt に保存する。
// ベンチ名ごとにバケットを作り、終了時刻（unix ナノ秒、ビッグエンディアン）をキーにする
type Store struct {
	db   *bbolt.DB
	path string
}

// Open はファイルを開く。存在しなければ作成する
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path はファイルパスを返す
func (s *Store) Path() string {
	return s.path
}

// Close はファイルを閉じる
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeKey(t time.Time) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano()))
	return key
}

// Save は結果を保存する。同じ時刻のキーがあれば 1ns ずらす
func (s *Store) Save(result *bench.Result) error {
	if result == nil {
		return errors.New("nil result")
	}
	if result.BenchName == "" {
		return errors.New("result has no bench name")
	}

	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	at := result.EndTime
	if at.IsZero() {
		at = time.Now()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(result.BenchName))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		key := encodeKey(at)
		for b.Get(key) != nil {
			at = at.Add(time.Nanosecond)
			key = encodeKey(at)
		}
		return b.Put(key, value)
	})
}

// List は指定したベンチの結果を古い順に返す
func (s *Store) List(name string) ([]bench.Result, error) {
	var results []bench.Result

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var r bench.Result
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to decode entry %x: %w", k, err)
			}
			results = append(results, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Latest は指定したベンチの最新の結果を返す
func (s *Store) Latest(name string) (*bench.Result, error) {
	var result *bench.Result

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return ErrNotFound
		}
		k, v := b.Cursor().Last()
		if k == nil {
			return ErrNotFound
		}
		result = &bench.Result{}
		if err := json.Unmarshal(v, result); err != nil {
			return fmt.Errorf("failed to decode entry %x: %w", k, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Names は記録のあるベンチ名を返す
func (s *Store) Names() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}
