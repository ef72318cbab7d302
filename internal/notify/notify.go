// Package notify carries user-visible transient notifications: the outcome
// of selections, analysis runs, fetch failures and exports.
package notify

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	Seq     uint64    `json:"seq"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(level Level, message string)
}

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Level, string) {}

const DefaultCapacity = 50

// Feed keeps the most recent notifications in a ring and mirrors each one to
// the logger.
type Feed struct {
	mu    sync.Mutex
	log   *zap.Logger
	clock clock.Clock
	items []Notification
	next  int
	full  bool
	seq   uint64
}

func NewFeed(log *zap.Logger, clk clock.Clock, capacity int) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{log: log, clock: clk, items: make([]Notification, capacity)}
}

func (f *Feed) Notify(level Level, message string) {
	f.mu.Lock()
	f.seq++
	n := Notification{Seq: f.seq, Level: level, Message: message, Time: f.clock.Now().UTC()}
	f.items[f.next] = n
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
	f.mu.Unlock()

	fields := []zap.Field{zap.String("level", string(level)), zap.Uint64("seq", n.Seq)}
	switch level {
	case LevelError:
		f.log.Error(message, fields...)
	case LevelWarning:
		f.log.Warn(message, fields...)
	default:
		f.log.Info(message, fields...)
	}
}

// Recent returns notifications oldest first.
func (f *Feed) Recent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.full {
		return append([]Notification{}, f.items[:f.next]...)
	}
	out := make([]Notification, 0, len(f.items))
	out = append(out, f.items[f.next:]...)
	return append(out, f.items[:f.next]...)
}

// Since returns notifications with a sequence number greater than seq.
func (f *Feed) Since(seq uint64) []Notification {
	out := []Notification{}
	for _, n := range f.Recent() {
		if n.Seq > seq {
			out = append(out, n)
		}
	}
	return out
}

// Last returns the newest notification.
func (f *Feed) Last() (Notification, bool) {
	recent := f.Recent()
	if len(recent) == 0 {
		return Notification{}, false
	}
	return recent[len(recent)-1], true
}
