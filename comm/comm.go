// Package comm provides an in-process message passing layer. Each rank runs
// as a goroutine and exchanges messages through per-rank mailboxes, giving
// MPI-like point-to-point and collective semantics without cgo.
package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrAborted is returned from blocking calls once any rank in the world has
// failed
var ErrAborted = errors.New("comm: world aborted")

type message struct {
	src     int
	tag     int
	payload any
}

type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []message
	aborted bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) put(msg message) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
	m.cond.Broadcast()
}

// take blocks until a message from src with tag is queued. Messages with the
// same source and tag are delivered in send order.
func (m *mailbox) take(src, tag int) (message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		for i, msg := range m.queue {
			if msg.src == src && msg.tag == tag {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				return msg, nil
			}
		}
		if m.aborted {
			return message{}, ErrAborted
		}
		m.cond.Wait()
	}
}

func (m *mailbox) abort() {
	m.mu.Lock()
	m.aborted = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

// World is a fixed set of ranks sharing mailboxes
type World struct {
	size  int
	boxes []*mailbox
	once  sync.Once
}

// NewWorld creates a world of size ranks
func NewWorld(size int) *World {
	if size < 1 {
		panic(fmt.Sprintf("comm: invalid world size %d", size))
	}
	w := &World{size: size, boxes: make([]*mailbox, size)}
	for i := range w.boxes {
		w.boxes[i] = newMailbox()
	}
	return w
}

// Size returns the number of ranks
func (w *World) Size() int {
	return w.size
}

// Comm returns the communicator for rank
func (w *World) Comm(rank int) *Comm {
	if rank < 0 || rank >= w.size {
		panic(fmt.Sprintf("comm: rank %d outside world of size %d", rank, w.size))
	}
	return &Comm{world: w, rank: rank}
}

// Abort wakes every blocked receive with ErrAborted
func (w *World) Abort() {
	w.once.Do(func() {
		for _, b := range w.boxes {
			b.abort()
		}
	})
}

// Run starts one goroutine per rank and waits for all of them. The first
// error aborts the world so that ranks blocked on a receive return.
func Run(size int, fn func(c *Comm) error) error {
	w := NewWorld(size)
	g, ctx := errgroup.WithContext(context.Background())
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			w.Abort()
		case <-done:
		}
	}()
	for rank := 0; rank < size; rank++ {
		c := w.Comm(rank)
		g.Go(func() error {
			if err := fn(c); err != nil {
				return fmt.Errorf("rank %d: %w", c.rank, err)
			}
			return nil
		})
	}
	err := g.Wait()
	close(done)
	return err
}

// Comm is one rank's view of a World. A Comm must only be used by the
// goroutine running that rank.
type Comm struct {
	world   *World
	rank    int
	collSeq int
	tagSeq  int
}

// Rank returns this rank's index
func (c *Comm) Rank() int {
	return c.rank
}

// Size returns the number of ranks in the world
func (c *Comm) Size() int {
	return c.world.size
}

// NewTag returns a tag for a communication pattern created collectively.
// Every rank gets the same sequence of tags as long as patterns are created
// in the same order on all ranks.
func (c *Comm) NewTag() int {
	c.tagSeq++
	return c.tagSeq
}

func (c *Comm) checkPeer(rank int) {
	if rank < 0 || rank >= c.world.size {
		panic(fmt.Sprintf("comm: peer rank %d outside world of size %d", rank, c.world.size))
	}
}

// Send queues payload for dest. It never blocks. The payload must not be
// modified by the sender afterwards.
func (c *Comm) Send(dest, tag int, payload any) {
	c.checkPeer(dest)
	c.world.boxes[dest].put(message{src: c.rank, tag: tag, payload: payload})
}

// Recv blocks until a message from src with tag arrives
func (c *Comm) Recv(src, tag int) (any, error) {
	c.checkPeer(src)
	msg, err := c.world.boxes[c.rank].take(src, tag)
	if err != nil {
		return nil, err
	}
	return msg.payload, nil
}

// Request is a pending non-blocking operation
type Request struct {
	wait func() (any, error)
	done bool
	val  any
	err  error
}

// Wait completes the request. Calling Wait again returns the same result.
func (r *Request) Wait() (any, error) {
	if !r.done {
		r.val, r.err = r.wait()
		r.done = true
	}
	return r.val, r.err
}

// Isend starts a send. Sends are buffered, so the request completes at once.
func (c *Comm) Isend(dest, tag int, payload any) *Request {
	c.Send(dest, tag, payload)
	return &Request{done: true}
}

// Irecv posts a receive that completes on Wait
func (c *Comm) Irecv(src, tag int) *Request {
	c.checkPeer(src)
	return &Request{wait: func() (any, error) { return c.Recv(src, tag) }}
}

// WaitAll completes every request, returning the first error
func WaitAll(reqs []*Request) error {
	var first error
	for _, r := range reqs {
		if _, err := r.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecvFloats receives a []float64 payload
func (c *Comm) RecvFloats(src, tag int) ([]float64, error) {
	v, err := c.Recv(src, tag)
	if err != nil {
		return nil, err
	}
	f, ok := v.([]float64)
	if !ok {
		return nil, fmt.Errorf("comm: expected []float64 from rank %d tag %d, got %T", src, tag, v)
	}
	return f, nil
}

// RecvBytes receives a []byte payload
func (c *Comm) RecvBytes(src, tag int) ([]byte, error) {
	v, err := c.Recv(src, tag)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("comm: expected []byte from rank %d tag %d, got %T", src, tag, v)
	}
	return b, nil
}
