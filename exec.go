/*
Copyright 2024 Tim St. Pierre
Blocking, callback and future forms of the display operations
*/
package i2clcd

import (
	"context"
	"errors"
	"sync"
)

type gate int

const (
	needBegun gate = iota
	needNotBegun
	anyState
)

type job struct {
	run  func() error
	done func(error)
}

// executor runs the jobs of one Dev in submission order, one at a time. The
// draining goroutine only lives while the queue is not empty.
type executor struct {
	mu      sync.Mutex
	queue   []job
	running bool
}

func (e *executor) submit(run func() error, done func(error)) {
	e.mu.Lock()
	e.queue = append(e.queue, job{run: run, done: done})
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()
	go e.drain()
}

func (e *executor) drain() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.running = false
			e.mu.Unlock()
			return
		}
		j := e.queue[0]
		e.queue[0] = job{}
		e.queue = e.queue[1:]
		e.mu.Unlock()

		err := j.run()
		if j.done != nil {
			j.done(err)
		}
	}
}

// operation is the one implementation behind the three forms of a public
// method: the lifecycle gate and the body run on the executor.
type operation struct {
	name string
	gate gate
	body func() error
}

// async queues op and hands its error to cb. Callbacks run one at a time on
// their own queue, in the order the operations finished, never on the
// caller's goroutine. A callback may block on this Dev but must not wait
// for another callback.
func (d *Dev) async(op operation, cb func(error)) {
	d.submit(op, func(err error) {
		if cb == nil {
			return
		}
		d.callbacks.submit(func() error {
			cb(err)
			return nil
		}, nil)
	})
}

// future queues op and resolves the Future right where async would queue
// its callback.
func (d *Dev) future(op operation) *Future {
	f := newFuture()
	d.submit(op, f.resolve)
	return f
}

func (d *Dev) submit(op operation, done func(error)) {
	d.exec.submit(func() error {
		return d.run(op.name, op.gate, op.body)
	}, done)
}

func (d *Dev) run(op string, g gate, body func() error) error {
	if err := d.guard(op, g); err != nil {
		d.log.WithError(err).Debug("Rejected")
		return err
	}
	err := body()
	if err == nil {
		return nil
	}
	var be *BusError
	if errors.As(err, &be) && be.Op == "" {
		be.Op = op
	}
	d.log.WithError(err).Warnf("%s failed", op)
	return err
}

func (d *Dev) guard(op string, g gate) error {
	s := d.State()
	switch g {
	case needBegun:
		if s != StateBegun {
			return &LifecycleError{Op: op, State: s}
		}
	case needNotBegun:
		if s == StateBegun {
			return &LifecycleError{Op: op, State: s}
		}
	}
	return nil
}

// Future is the pending result of an operation.
type Future struct {
	done chan struct{}
	err  error
	once sync.Once
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the operation finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the operation's error, or nil while it is still pending.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the operation finished.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

// WaitContext is Wait with a way out. The operation itself keeps running
// when ctx expires.
func (f *Future) WaitContext(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Chain issues blocking operations until the first failure; later calls
// are skipped.
//
//	err := dev.Chain().Begin().Clear().Print("hello").SetCursor(0, 1).Print("world!").Err()
type Chain struct {
	d   *Dev
	err error
}

func (d *Dev) Chain() *Chain {
	return &Chain{d: d}
}

// Err returns the first error met by the chain.
func (c *Chain) Err() error {
	return c.err
}

func (c *Chain) do(f func() error) *Chain {
	if c.err == nil {
		c.err = f()
	}
	return c
}

func (c *Chain) Begin() *Chain              { return c.do(c.d.Begin) }
func (c *Chain) Clear() *Chain              { return c.do(c.d.Clear) }
func (c *Chain) Home() *Chain               { return c.do(c.d.Home) }
func (c *Chain) Cursor() *Chain             { return c.do(c.d.Cursor) }
func (c *Chain) NoCursor() *Chain           { return c.do(c.d.NoCursor) }
func (c *Chain) Blink() *Chain              { return c.do(c.d.Blink) }
func (c *Chain) NoBlink() *Chain            { return c.do(c.d.NoBlink) }
func (c *Chain) Display() *Chain            { return c.do(c.d.Display) }
func (c *Chain) NoDisplay() *Chain          { return c.do(c.d.NoDisplay) }
func (c *Chain) ScrollDisplayLeft() *Chain  { return c.do(c.d.ScrollDisplayLeft) }
func (c *Chain) ScrollDisplayRight() *Chain { return c.do(c.d.ScrollDisplayRight) }
func (c *Chain) Backlight() *Chain          { return c.do(c.d.Backlight) }
func (c *Chain) NoBacklight() *Chain        { return c.do(c.d.NoBacklight) }
func (c *Chain) Autoscroll() *Chain         { return c.do(c.d.Autoscroll) }
func (c *Chain) NoAutoscroll() *Chain       { return c.do(c.d.NoAutoscroll) }
func (c *Chain) MoveCursorLeft() *Chain     { return c.do(c.d.MoveCursorLeft) }
func (c *Chain) MoveCursorRight() *Chain    { return c.do(c.d.MoveCursorRight) }
func (c *Chain) LeftToRight() *Chain        { return c.do(c.d.LeftToRight) }
func (c *Chain) RightToLeft() *Chain        { return c.do(c.d.RightToLeft) }
func (c *Chain) Close() *Chain              { return c.do(c.d.Close) }

func (c *Chain) SetCursor(col, row int) *Chain {
	return c.do(func() error { return c.d.SetCursor(col, row) })
}

func (c *Chain) Print(text string) *Chain {
	return c.do(func() error { return c.d.Print(text) })
}

func (c *Chain) PrintLine(row int, text string) *Chain {
	return c.do(func() error { return c.d.PrintLine(row, text) })
}

func (c *Chain) CreateChar(slot int, pattern [8]byte) *Chain {
	return c.do(func() error { return c.d.CreateChar(slot, pattern) })
}
