package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level はログレベルを表す
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel は文字列からログレベルを解析する（大文字小文字を区別しない）
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// sink は同じ出力先を共有する Logger 間の共通状態
type sink struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
}

// Logger はスレッドセーフなロガー
// Named で派生したロガーは出力先とレベルを親と共有する
type Logger struct {
	s         *sink
	component string
}

// Default はデフォルトのロガー
var Default = New(os.Stdout, LevelInfo)

// New は新しいロガーを作成する
func New(out io.Writer, minLevel Level) *Logger {
	return &Logger{s: &sink{out: out, minLevel: minLevel}}
}

// Named はコンポーネント名付きのロガーを返す
func (l *Logger) Named(component string) *Logger {
	return &Logger{s: l.s, component: component}
}

// Component はコンポーネント名を返す
func (l *Logger) Component() string {
	return l.component
}

// SetLevel はログレベルを設定する
func (l *Logger) SetLevel(level Level) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.minLevel = level
}

// SetOutput は出力先を差し替える
func (l *Logger) SetOutput(out io.Writer) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.out = out
}

// Enabled は指定レベルのログが出力されるかを返す
func (l *Logger) Enabled(level Level) bool {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return level >= l.s.minLevel
}

func (l *Logger) log(level Level, format string, args ...any) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if level < l.s.minLevel {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)

	if l.component != "" {
		_, _ = fmt.Fprintf(l.s.out, "[%s] [%s] [%s] %s\n", timestamp, level, l.component, msg)
	} else {
		_, _ = fmt.Fprintf(l.s.out, "[%s] [%s] %s\n", timestamp, level, msg)
	}
}

// Debugf はデバッグログを出力する
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

// Infof は情報ログを出力する
func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warnf は警告ログを出力する
func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Errorf はエラーログを出力する
func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// グローバル関数（デフォルトロガーを使用）

// Named はデフォルトロガーから派生したロガーを返す
func Named(component string) *Logger {
	return Default.Named(component)
}

// Debugf はデバッグログを出力する
func Debugf(format string, args ...any) {
	Default.Debugf(format, args...)
}

// Infof は情報ログを出力する
func Infof(format string, args ...any) {
	Default.Infof(format, args...)
}

// Warnf は警告ログを出力する
func Warnf(format string, args ...any) {
	Default.Warnf(format, args...)
}

// Errorf はエラーログを出力する
func Errorf(format string, args ...any) {
	Default.Errorf(format, args...)
}
