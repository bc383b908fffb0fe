// Package sink implements the Core's C6 Default-Device Sink: the
// default handler's backing FIFO plus the user-agent-facing Read/Write/Poll
// surface, grounded on the original driver's ipmi_bmc_devintf.c (a DECLARE_KFIFO
// of bt_msg sized roundup_pow_of_two(BT_MSG_SEQ_MAX), wait_event_interruptible
// reads, and EAGAIN/EINVAL semantics).
package sink

import (
	"context"
	"sync"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/interfaces"
	"github.com/ipmibmc/bmccore/internal/message"
)

// MinCapacity is the smallest FIFO capacity the sink will round up to: it
// must hold at least message.SeqMax+1 in-flight frames, mirroring
// REQUEST_FIFO_SIZE = roundup_pow_of_two(BT_MSG_SEQ_MAX) in the original
// driver.
const MinCapacity = message.SeqMax + 1

// Sink is a bounded, single-producer/multi-consumer ring FIFO of requests,
// paired with a broadcast wake-up for blocking readers and response-open
// waiters.
type Sink struct {
	mu       sync.Mutex
	ring     []message.Message
	head     int
	count    int
	notify   chan struct{}
	log      interfaces.Logger
	obs      interfaces.Observer
	respOpen bool
}

// New returns a Sink whose FIFO holds at least capacity frames, rounded up
// to the next power of two (and never below MinCapacity).
func New(capacity int, log interfaces.Logger, obs interfaces.Observer) *Sink {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	return &Sink{
		ring:   make([]message.Message, roundupPow2(capacity)),
		notify: make(chan struct{}),
		log:    log,
		obs:    obs,
	}
}

func roundupPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Match always accepts: the default sink is the fallback of last resort.
func (s *Sink) Match(message.Message) bool { return true }

// Handle enqueues req for a waiting consumer. A zero-length request (Len==0,
// i.e. no header at all) is rejected as invalid, matching the original
// driver's explicit "count == 0" EINVAL check. A full FIFO is reported busy,
// matching kfifo_put's backpressure.
func (s *Sink) Handle(_ context.Context, req message.Message) error {
	if req.Len == 0 {
		return bmcerr.New("sink.Handle", bmcerr.CodeInvalid, "zero-length request")
	}
	s.mu.Lock()
	if s.count == len(s.ring) {
		s.mu.Unlock()
		return bmcerr.New("sink.Handle", bmcerr.CodeBusy, "request FIFO full")
	}
	tail := (s.head + s.count) % len(s.ring)
	s.ring[tail] = req
	s.count++
	if s.obs != nil {
		s.obs.SetQueueDepth(s.count)
	}
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// SignalResponseOpen records that a response can now be sent and wakes any
// waiter blocked in Poll/Write.
func (s *Sink) SignalResponseOpen() {
	s.mu.Lock()
	s.respOpen = true
	s.mu.Unlock()
	s.broadcast()
}

// broadcast wakes every waiter by closing and replacing the notify channel.
// Must be called without s.mu held.
func (s *Sink) broadcast() {
	s.mu.Lock()
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()
}

// Read removes and returns the oldest queued request. If nonBlocking is
// true and the FIFO is empty, it returns a busy error immediately (the
// try-again case: analogous to the original's O_NONBLOCK EAGAIN). Otherwise
// it blocks until a request arrives or ctx is done, returning interrupted on
// cancellation.
func (s *Sink) Read(ctx context.Context, nonBlocking bool) (message.Message, error) {
	for {
		s.mu.Lock()
		if s.count > 0 {
			req := s.ring[s.head]
			s.ring[s.head] = message.Message{}
			s.head = (s.head + 1) % len(s.ring)
			s.count--
			if s.obs != nil {
				s.obs.SetQueueDepth(s.count)
			}
			s.mu.Unlock()
			return req, nil
		}
		wake := s.notify
		s.mu.Unlock()

		if nonBlocking {
			return message.Message{}, bmcerr.New("sink.Read", bmcerr.CodeBusy, "no request queued")
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return message.Message{}, bmcerr.New("sink.Read", bmcerr.CodeInterrupted, "read canceled")
		}
	}
}

// Write delivers resp through send, blocking until the transport's
// response slot is open unless nonBlocking is set, in which case a closed
// slot is reported busy immediately. send typically delivers through the
// same transport the Core's dispatcher sends through; Write exists so a user-agent talking
// to the default sink can submit a response the same way it would write to
// the original character device.
func (s *Sink) Write(ctx context.Context, resp message.Message, nonBlocking bool, send func(context.Context, message.Message) error) error {
	for {
		err := send(ctx, resp)
		if err == nil {
			s.mu.Lock()
			s.respOpen = false
			s.mu.Unlock()
			return nil
		}
		if !bmcerr.Is(err, bmcerr.CodeBusy) {
			return err
		}
		if nonBlocking {
			return err
		}

		s.mu.Lock()
		wake := s.notify
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return bmcerr.New("sink.Write", bmcerr.CodeInterrupted, "write canceled")
		}
	}
}

// Poll reports whether a Read would not block (requests queued) and whether
// a Write would not immediately report busy (response slot open).
func (s *Sink) Poll() (readable, writable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count > 0, s.respOpen
}

// Depth returns the number of requests currently queued.
func (s *Sink) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
