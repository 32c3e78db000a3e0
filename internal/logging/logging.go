// Package logging 构造进程级 slog.Logger（stderr + 可选滚动文件）。
package logging

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/chris-bingham/meta-geta/internal/config"
)

const (
	defaultMaxSizeMB  = 20
	defaultMaxBackups = 3
	defaultMaxAgeDays = 30
)

// New 按配置构造 logger。
//
// 约束：
// - 日志只写 stderr（stdout 留给交互提示与报告）
// - log.file_path 非空时额外写入 lumberjack 滚动文件；返回的 Closer 负责关闭它
func New(cfg config.LogConfig, stderr io.Writer) (*slog.Logger, io.Closer) {
	w := stderr
	var closer io.Closer = nopCloser{}
	if strings.TrimSpace(cfg.FilePath) != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: orDefault(cfg.MaxBackups, defaultMaxBackups),
			MaxAge:     orDefault(cfg.MaxAgeDays, defaultMaxAgeDays),
		}
		w = io.MultiWriter(stderr, lj)
		closer = lj
	}
	return slog.New(newHandler(w, ParseLevel(cfg.Level), cfg.Format)), closer
}

// Discard 返回丢弃全部输出的 logger（测试与未注入 logger 的调用方使用）。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel 把 debug/info/warn/error 转成 slog.Level，未知值按 info。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
