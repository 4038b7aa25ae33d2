// Package speech provides a text-driven recognizer: each typed line stands in
// for one spoken utterance.
package speech

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

// Lines turns fed lines into recognition results. Every word yields an
// interim segment with the text so far, then the whole line arrives as one
// final segment. After SessionLimit final segments the session ends on its
// own, as hosted recognizers do.
type Lines struct {
	Disabled     bool
	SessionLimit int

	mu       sync.Mutex
	running  bool
	finals   int
	onResult func(core.Segment)
	onEnd    func()
	onError  func(error)
}

func NewLines(sessionLimit int) *Lines {
	return &Lines{SessionLimit: sessionLimit}
}

func (l *Lines) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Disabled {
		return domain.ErrRecognitionUnsupported
	}
	if !l.running {
		l.running = true
		l.finals = 0
		log.Debug().Str("module", "speech").Msg("recognition started")
	}
	return nil
}

func (l *Lines) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		l.running = false
		log.Debug().Str("module", "speech").Msg("recognition stopped")
	}
}

func (l *Lines) OnResult(fn func(core.Segment)) {
	l.mu.Lock()
	l.onResult = fn
	l.mu.Unlock()
}

func (l *Lines) OnEnd(fn func()) {
	l.mu.Lock()
	l.onEnd = fn
	l.mu.Unlock()
}

func (l *Lines) OnError(fn func(error)) {
	l.mu.Lock()
	l.onError = fn
	l.mu.Unlock()
}

// Running reports whether fed lines are currently heard.
func (l *Lines) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Feed recognizes one line. It reports false when recognition is not running
// or the line holds no words.
func (l *Lines) Feed(line string) bool {
	words := strings.Fields(line)
	l.mu.Lock()
	if !l.running || len(words) == 0 {
		l.mu.Unlock()
		return false
	}
	fn := l.onResult
	l.finals++
	ended := l.SessionLimit > 0 && l.finals >= l.SessionLimit
	if ended {
		l.running = false
	}
	end := l.onEnd
	l.mu.Unlock()

	if fn != nil {
		for i := 1; i < len(words); i++ {
			fn(core.Segment{Text: strings.Join(words[:i], " ")})
		}
		fn(core.Segment{Text: strings.Join(words, " ") + " ", Final: true})
	}
	if ended && end != nil {
		log.Debug().Str("module", "speech").Msg("recognition session ended")
		end()
	}
	return true
}

// Fail reports err through OnError. A permission error also stops recognition.
func (l *Lines) Fail(err error) {
	l.mu.Lock()
	if errors.Is(err, domain.ErrRecognitionPermissionDenied) {
		l.running = false
	}
	fn := l.onError
	l.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
