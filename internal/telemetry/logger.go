package telemetry

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/imamik/vcdflow/internal/config"
)

// debugLevel enables logr verbosity up to V(2).
const debugLevel = zapcore.Level(-2)

// NewLogger returns a logr.Logger writing to w, backed by zap. The returned
// function flushes buffered entries.
//
// Format "auto" writes human-readable lines when w is a terminal and JSON
// otherwise.
func NewLogger(cfg config.LogConfig, w io.Writer) (logr.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return logr.Discard(), func() {}, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch format(cfg.Format, w) {
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(level))
	zl := zap.New(core, zap.AddCaller())
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return debugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

func format(f string, w io.Writer) string {
	if f != "" && f != "auto" {
		return f
	}
	if file, ok := w.(*os.File); ok && (isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())) {
		return "console"
	}
	return "json"
}
