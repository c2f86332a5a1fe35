package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/panel-labs/paneld/internal/protocol"
)

const (
	readBufSize = 512

	// tickInterval paces the session's inactivity-timeout checks.
	tickInterval = 250 * time.Millisecond
)

// Loop drives one protocol session from the link. A reader goroutine pumps
// byte chunks into a channel; the loop goroutine multiplexes those chunks
// with a periodic tick and is the session's only caller, which is what lets
// the session itself stay lock-free.
type Loop struct {
	link  io.Reader
	sess  *protocol.Session
	log   zerolog.Logger
	tick  time.Duration
	calls chan func()
}

// NewLoop creates a loop over the given link reader and session.
func NewLoop(link io.Reader, sess *protocol.Session, log zerolog.Logger) *Loop {
	return &Loop{
		link:  link,
		sess:  sess,
		log:   log.With().Str("component", "loop").Logger(),
		tick:  tickInterval,
		calls: make(chan func(), 4),
	}
}

// Invoke schedules fn to run on the loop goroutine, serialized with session
// work. The config watcher uses it to apply calibration without racing the
// session. Drops the call when the loop is saturated or stopped rather than
// blocking the caller.
func (l *Loop) Invoke(fn func()) {
	select {
	case l.calls <- fn:
	default:
		l.log.Warn().Msg("loop busy, dropping scheduled call")
	}
}

// Run blocks until the context is cancelled or the link closes. A clean EOF
// returns nil; any other read failure is returned to the caller, which owns
// the reopen policy.
func (l *Loop) Run(ctx context.Context) error {
	chunks := make(chan []byte, 8)
	readErr := make(chan error, 1)

	go func() {
		defer close(chunks)
		buf := make([]byte, readBufSize)
		for {
			n, err := l.link.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				// The reader exits without reporting when the context
				// cancelled it mid-send.
				var err error
				select {
				case err = <-readErr:
				case <-ctx.Done():
					return ctx.Err()
				}
				if errors.Is(err, io.EOF) {
					l.log.Info().Msg("link closed")
					return nil
				}
				l.log.Error().Err(err).Msg("link read failed")
				return err
			}
			l.sess.Feed(chunk)

		case fn := <-l.calls:
			fn()

		case now := <-ticker.C:
			l.sess.Tick(now)
		}
	}
}
