package websocket

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// supervisor runs the detached transport teardown exactly once and keeps its
// outcome until someone collects it.
type supervisor struct {
	log  zerolog.Logger
	once sync.Once
	done chan struct{}
	err  error
}

func newSupervisor(log zerolog.Logger) *supervisor {
	return &supervisor{
		log:  log,
		done: make(chan struct{}),
	}
}

// Go starts fn in the background. Calls after the first are ignored.
func (s *supervisor) Go(fn func() error) {
	s.once.Do(func() {
		go func() {
			defer close(s.done)
			s.err = runTeardown(fn)
			if s.err != nil {
				s.log.Error().Err(s.err).Msg("transport teardown failed")
				return
			}
			s.log.Debug().Msg("transport released")
		}()
	})
}

// Wait blocks until the teardown finished and returns its error.
func (s *supervisor) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runTeardown(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("teardown panic: %v", r)
		}
	}()
	return fn()
}
