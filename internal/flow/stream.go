package flow

import (
	"context"
	"errors"
)

// Stream is the stream-wrapping form of the orchestrator. It starts a
// session, consumes text units from in and returns a channel carrying the
// same units with synthetic filler phrases interleaved ahead of the first
// real unit whenever a stall is detected.
//
// The output channel closes when in closes, when ctx is cancelled or when the
// session is interrupted; an interrupt truncates the stream without emitting
// further units. The session is completed on every exit path, so statistics
// stay available through Stats after the stream ends. Fails with
// ErrAlreadyStarted while a session is active.
func (o *Orchestrator) Stream(ctx context.Context, in <-chan string) (<-chan string, error) {
	if err := o.Start(); err != nil {
		return nil, err
	}

	out := make(chan string)
	fillers := make(chan string, o.cfg.MaxFillersPerSession)
	stopped := make(chan struct{})

	// Interrupted fires at most once per session, so the close cannot panic
	unsub := o.On(func(ev Event) {
		switch e := ev.(type) {
		case FillerInjectedEvent:
			select {
			case fillers <- e.Phrase:
			default:
			}
		case InterruptedEvent:
			close(stopped)
		}
	})

	go func() {
		o.pump(ctx, in, out, fillers, stopped)
		unsub()
		if err := o.Complete(); err != nil && !errors.Is(err, ErrNotStarted) {
			o.logger.Error().Err(err).Msg("Stream completion failed")
		}
		close(out)
	}()

	return out, nil
}

// pump forwards units from in to out until the input closes, the context is
// cancelled or the session is interrupted
func (o *Orchestrator) pump(ctx context.Context, in <-chan string, out chan<- string, fillers <-chan string, stopped <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			o.Interrupt()
			return
		case <-stopped:
			return
		case phrase := <-fillers:
			if !o.send(ctx, out, stopped, phrase) {
				return
			}
		case unit, ok := <-in:
			if !ok {
				return
			}
			if err := o.ProcessChunk(unit); err != nil {
				o.logger.Error().Err(err).Msg("Stream chunk rejected")
				return
			}
			if o.State() == StateInterrupted {
				// Barge-in landed while this unit was in flight; drop it
				return
			}
			// Any filler queued ahead of this unit goes out first
			if !o.drainFillers(ctx, out, fillers, stopped) {
				return
			}
			if !o.send(ctx, out, stopped, unit) {
				return
			}
		}
	}
}

// drainFillers flushes queued filler phrases to out. Returns false when the
// stream should stop.
func (o *Orchestrator) drainFillers(ctx context.Context, out chan<- string, fillers <-chan string, stopped <-chan struct{}) bool {
	for {
		select {
		case phrase := <-fillers:
			if !o.send(ctx, out, stopped, phrase) {
				return false
			}
		default:
			return true
		}
	}
}

// send delivers one unit downstream. Returns false when the context is
// cancelled or the session is interrupted mid-send.
func (o *Orchestrator) send(ctx context.Context, out chan<- string, stopped <-chan struct{}, unit string) bool {
	select {
	case out <- unit:
		return true
	case <-stopped:
		return false
	case <-ctx.Done():
		o.Interrupt()
		return false
	}
}
