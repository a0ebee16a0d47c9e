package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// openWriter 根据 Output 配置打开输出目标
func openWriter(config *Config, o *options) (io.Writer, error) {
	switch strings.ToLower(config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "buffer":
		if o.buffer == nil {
			return nil, fmt.Errorf("buffer output requires WithBuffer")
		}
		return o.buffer, nil
	default:
		return os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
}

// newHandler 创建 slog.Handler，级别由 levelVar 控制以支持运行时调整
func newHandler(config *Config, o *options, levelVar *slog.LevelVar) (slog.Handler, error) {
	w, err := openWriter(config, o)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		AddSource: config.AddSource,
		Level:     levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				if lv, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(lv))
				}
			case slog.TimeKey:
				if a.Value.Kind() == slog.KindTime {
					a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
				}
			case slog.SourceKey:
				if src, ok := a.Value.Any().(*slog.Source); ok {
					return slog.String("caller", fmt.Sprintf("%s:%d", trimSource(src.File, config.SourceRoot), src.Line))
				}
			}
			return a
		},
	}

	if strings.ToLower(config.Format) == "json" {
		return slog.NewJSONHandler(w, opts), nil
	}
	return slog.NewTextHandler(w, opts), nil
}

func levelName(lv slog.Level) string {
	switch {
	case lv <= slog.LevelDebug:
		return "DEBUG"
	case lv <= slog.LevelInfo:
		return "INFO"
	case lv <= slog.LevelWarn:
		return "WARN"
	case lv <= slog.LevelError:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// trimSource 裁剪 caller 路径，root 为空时只保留 "目录/文件名"
func trimSource(file, root string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, file); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	dir, name := filepath.Split(file)
	return filepath.Join(filepath.Base(dir), name)
}
