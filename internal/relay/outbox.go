package relay

import "sync"

// Emitter accepts outbound envelopes for one connection. Emit reports
// whether the envelope was queued; after the connection closes it returns
// false and the envelope is dropped.
type Emitter interface {
	Emit(env Envelope) bool
}

const defaultOutboxSize = 64

// Outbox serializes emissions from concurrent request goroutines onto a
// single transport writer. The channel is never closed; Close signals Done
// instead so late emitters cannot panic.
type Outbox struct {
	queue chan Envelope
	done  chan struct{}
	once  sync.Once
}

// NewOutbox creates an outbox buffering up to size envelopes.
func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = defaultOutboxSize
	}
	return &Outbox{
		queue: make(chan Envelope, size),
		done:  make(chan struct{}),
	}
}

// Emit implements Emitter. It blocks while the buffer is full.
func (o *Outbox) Emit(env Envelope) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.queue <- env:
		return true
	case <-o.done:
		return false
	}
}

// Messages is read by the transport's write pump.
func (o *Outbox) Messages() <-chan Envelope {
	return o.queue
}

// Done is closed once the outbox stops accepting envelopes.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Close stops accepting envelopes. It is safe to call more than once.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}

// Pump writes queued envelopes in order until the outbox closes or write
// fails. Envelopes already queued at close are flushed. A failed write
// closes the outbox.
func (o *Outbox) Pump(write func(Envelope) error) error {
	for {
		select {
		case env := <-o.queue:
			if err := write(env); err != nil {
				o.Close()
				return err
			}
		case <-o.done:
			return o.flush(write)
		}
	}
}

func (o *Outbox) flush(write func(Envelope) error) error {
	for {
		select {
		case env := <-o.queue:
			if err := write(env); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
