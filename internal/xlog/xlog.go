/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package xlog wraps zap so that every internal package logs through a
// named, structured sub-logger instead of reaching for the global logger
// directly.
package xlog

import (
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is a named zap.Logger. It embeds *zap.Logger so callers keep using
// the familiar zap.Field call sites (zap.String, zap.Error, ...).
type Log struct {
	*zap.Logger
	module string
}

var base = zap.NewNop()

// Init installs the process-wide base logger. path == "" keeps logging on
// stderr; otherwise output is rotated through lumberjack.
func Init(level zapcore.Level, path string) {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	var ws zapcore.WriteSyncer
	if path == "" {
		ws = zapcore.Lock(os.Stderr)
	} else {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     28,
			Compress:   true,
		})
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, level)
	base = zap.New(core, zap.AddCaller())
}

// LoggerModule returns a *Log scoped to the named module, matching the
// construction used throughout internal/server.
func LoggerModule(module string) *Log {
	return &Log{Logger: base.With(zap.String("module", module)), module: module}
}
