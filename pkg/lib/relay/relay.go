package relay

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

// Relay drains a line-oriented stream on its own goroutine and hands every
// line to emit. It stops at end of input, on read error or when cancelled.
type Relay struct {
	src    io.ReadCloser
	emit   func(line string)
	logger *slog.Logger

	cancelled  atomic.Bool
	cancelOnce sync.Once
	done       chan struct{}
	lines      atomic.Int64
}

// Start launches a relay reading src. A nil logger discards output.
func Start(src io.ReadCloser, emit func(line string), logger *slog.Logger) *Relay {
	r := &Relay{
		src:    src,
		emit:   emit,
		logger: lib.OrDiscard(logger),
		done:   make(chan struct{}),
	}

	go r.run()

	return r
}

func (r *Relay) run() {
	defer close(r.done)

	reader := bufio.NewReader(r.src)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 && !r.cancelled.Load() {
			r.lines.Add(1)
			// Lines travel in protobuf strings, which must be valid UTF-8.
			r.emit(strings.ToValidUTF8(strings.TrimRight(line, "\r\n"), "\uFFFD"))
		}
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, io.EOF):
			r.logger.Debug("Output closed", "lines", r.lines.Load())
		case r.cancelled.Load() || errors.Is(err, os.ErrClosed):
			r.logger.Debug("Relay cancelled", "lines", r.lines.Load())
		default:
			r.logger.Warn("Output read failed", "error", err)
		}
		return
	}
}

// Cancel stops the relay by closing its source. Safe to call repeatedly and
// after the relay has finished on its own.
func (r *Relay) Cancel() {
	r.cancelOnce.Do(func() {
		r.cancelled.Store(true)
		_ = r.src.Close()
	})
}

// Done is closed when the relay goroutine has returned.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

// Lines returns how many lines have been emitted so far.
func (r *Relay) Lines() int64 {
	return r.lines.Load()
}
