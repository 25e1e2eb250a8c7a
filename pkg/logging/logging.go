// Package logging wraps zap for the Percolator host process, scoped to
// the fields it cares about: slab key, instruction tag, and slot.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console JSON logger at info level, ISO8601 timestamps.
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// NewWithFile builds a logger that tees to stdout and to a file at
// logPath, creating the file's parent directory if needed.
func NewWithFile(logPath string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), zap.InfoLevel),
		zapcore.NewCore(enc, zapcore.AddSync(file), zap.InfoLevel),
	)
	return zap.New(core), nil
}

// ForSlab returns a child logger tagged with the slab this process
// instance is serving, so multi-market log lines stay attributable.
func ForSlab(base *zap.Logger, slabKey [32]byte) *zap.Logger {
	return base.With(zap.String("slab", shortHex(slabKey[:])))
}

// ForInstruction returns a child logger tagged with the instruction tag
// and slot a call to Processor.Process is handling.
func ForInstruction(base *zap.Logger, tag byte, slot uint64) *zap.Logger {
	return base.With(zap.Uint8("tag", tag), zap.Uint64("slot", slot))
}

func shortHex(b []byte) string {
	const hextable = "0123456789abcdef"
	n := len(b)
	if n > 8 {
		n = 8
	}
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		out[i*2] = hextable[b[i]>>4]
		out[i*2+1] = hextable[b[i]&0xf]
	}
	return string(out)
}
