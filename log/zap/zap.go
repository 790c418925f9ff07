// Package zap adapts a *zap.Logger to doccache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/doccache"
)

var _ doccache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New names the logger "doccache" so its lines are easy to filter.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("doccache")} }

func (z Logger) Debug(msg string, f doccache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f doccache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f doccache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f doccache.Fields) { z.L.Error(msg, fields(f)...) }

// fields keeps key order stable and maps error values to zap.Error.
func fields(f doccache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
