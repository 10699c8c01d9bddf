// Copyright 2026 The Enterprise Azure Policy as Code Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package view

var _ Viewer = (*HumanView)(nil)
var _ Viewer = (*JSONView)(nil)

// Viewer is the format-specific rendering surface the CLI carries. The log
// level it was configured with is exposed so other log destinations (the
// planners' logr handler) can follow the same verbosity.
type Viewer interface {
	Logger() Logger
	LogLevel() LogLevel
}

func NewViewer(vt ViewType, s *Stream, level LogLevel) Viewer {
	switch vt {
	case ViewHuman:
		return NewHumanView(s, level)
	case ViewJSON:
		return NewJSONView(s, level)
	default:
		panic("unknown view type")
	}
}

// HumanView renders for an operator terminal: colored plan summaries and
// tint-formatted logs.
type HumanView struct {
	*Stream
	logger Logger
	level  LogLevel
}

func NewHumanView(s *Stream, level LogLevel) *HumanView {
	logger := NewNopLogger()
	if level != LogLevelSilent {
		logger = NewHumanLogger(s.Writer, level)
	}
	return &HumanView{
		Stream: s,
		logger: logger,
		level:  level,
	}
}

func (h *HumanView) Logger() Logger {
	return h.logger
}

func (h *HumanView) LogLevel() LogLevel {
	return h.level
}

// JSONView renders machine-readable output; logs are structured JSON too so
// a pipeline consumer sees one stream shape.
type JSONView struct {
	*Stream
	logger Logger
	level  LogLevel
}

func NewJSONView(s *Stream, level LogLevel) *JSONView {
	logger := NewNopLogger()
	if level != LogLevelSilent {
		logger = NewJSONLogger(s.Writer, level)
	}
	return &JSONView{
		Stream: s,
		logger: logger,
		level:  level,
	}
}

func (j *JSONView) Logger() Logger {
	return j.logger
}

func (j *JSONView) LogLevel() LogLevel {
	return j.level
}
