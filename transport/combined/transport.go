// Copyright (c) 2024 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package combined composes two transport.Connector/transport.Listener pairs
// over the same envelope types into one, per spec.md §4.3: a Connector that
// tries its first backend before its second, and a Listener that races both
// and returns whichever yields first, with neither backend starved over
// many accepts.
//
// Either backend may be nil. A nil Connector backend is simply skipped; a
// nil Listener backend becomes a branch that never fires, so Accept falls
// through to whichever backend is present. Two nil Connector backends yield
// ErrNoChannel, matching spec.md's OpenError::NoChannel.
package combined

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/substream/rpcerrors"
	"go.uber.org/substream/transport"
)

// ErrNoChannel is returned by Connector.Open when both backends are nil.
var ErrNoChannel = errors.New("combined: no channel available")

// Branch tags which backend served a substream, so callers that need to
// know which physical transport a substream rode can inspect it without
// the combined package exposing either backend's concrete type.
type Branch int

const (
	// BranchA is the first ("a") backend.
	BranchA Branch = iota
	// BranchB is the second ("b") backend.
	BranchB
)

func (b Branch) String() string {
	if b == BranchA {
		return "a"
	}
	return "b"
}

// Connector tries backend a before backend b on every Open.
type Connector[Out, In any] struct {
	a, b transport.Connector[Out, In]
}

// NewConnector builds a Connector over two (optionally nil) backends.
func NewConnector[Out, In any](a, b transport.Connector[Out, In]) *Connector[Out, In] {
	return &Connector[Out, In]{a: a, b: b}
}

// Open implements transport.Connector. It never races: a is given the
// chance to open first, and b is only attempted if a is absent or its Open
// fails.
func (c *Connector[Out, In]) Open(ctx context.Context) (transport.SendHalf[Out], transport.RecvHalf[In], error) {
	send, recv, _, err := c.OpenBranch(ctx)
	return send, recv, err
}

// OpenBranch is Open plus which backend served the substream, for callers
// (tests, introspection) that care which physical transport was chosen.
func (c *Connector[Out, In]) OpenBranch(ctx context.Context) (transport.SendHalf[Out], transport.RecvHalf[In], Branch, error) {
	if c.a == nil && c.b == nil {
		return nil, nil, BranchA, rpcerrors.Open(ErrNoChannel)
	}
	if c.a != nil {
		send, recv, err := c.a.Open(ctx)
		if err == nil {
			return send, recv, BranchA, nil
		}
		if c.b == nil {
			return nil, nil, BranchA, err
		}
	}
	send, recv, err := c.b.Open(ctx)
	return send, recv, BranchB, err
}

// Listener races backend a's Accept against backend b's Accept, returning
// whichever yields a substream first. An absent backend contributes a
// branch that blocks until ctx is done, so it never wins and never starves
// the other.
type Listener[Out, In any] struct {
	a, b transport.Listener[Out, In]

	startOnce sync.Once
	results   chan acceptResult[Out, In]
}

// NewListener builds a Listener over two (optionally nil) backends.
func NewListener[Out, In any](a, b transport.Listener[Out, In]) *Listener[Out, In] {
	return &Listener[Out, In]{a: a, b: b, results: make(chan acceptResult[Out, In])}
}

type acceptResult[Out, In any] struct {
	send   transport.SendHalf[Out]
	recv   transport.RecvHalf[In]
	branch Branch
	err    error
}

// start launches one permanent forwarding goroutine per present backend,
// each looping Accept->results forever. Permanent (rather than one-shot per
// Accept call) so a quiet backend never accumulates a goroutine per call.
func (l *Listener[Out, In]) start() {
	forward := func(lis transport.Listener[Out, In], branch Branch) {
		for {
			send, recv, err := lis.Accept(context.Background())
			l.results <- acceptResult[Out, In]{send, recv, branch, err}
			if err != nil {
				return
			}
		}
	}
	if l.a != nil {
		go forward(l.a, BranchA)
	}
	if l.b != nil {
		go forward(l.b, BranchB)
	}
}

// Accept implements transport.Listener.
func (l *Listener[Out, In]) Accept(ctx context.Context) (transport.SendHalf[Out], transport.RecvHalf[In], error) {
	send, recv, _, err := l.AcceptBranch(ctx)
	return send, recv, err
}

// AcceptBranch is Accept plus which backend served the substream, mirroring
// Connector.OpenBranch, for callers (tests, introspection, fairness metrics)
// that need to know which physical transport answered.
func (l *Listener[Out, In]) AcceptBranch(ctx context.Context) (transport.SendHalf[Out], transport.RecvHalf[In], Branch, error) {
	if l.a == nil && l.b == nil {
		<-ctx.Done()
		return nil, nil, BranchA, rpcerrors.Open(ctx.Err())
	}
	l.startOnce.Do(l.start)

	select {
	case r := <-l.results:
		if r.err != nil {
			return nil, nil, r.branch, r.err
		}
		return r.send, r.recv, r.branch, nil
	case <-ctx.Done():
		return nil, nil, BranchA, rpcerrors.Open(ctx.Err())
	}
}

// LocalAddr implements transport.Listener as the concatenation of each
// present backend's addresses, in a-then-b order.
func (l *Listener[Out, In]) LocalAddr() []transport.Addr {
	var addrs []transport.Addr
	if l.a != nil {
		addrs = append(addrs, l.a.LocalAddr()...)
	}
	if l.b != nil {
		addrs = append(addrs, l.b.LocalAddr()...)
	}
	return addrs
}
