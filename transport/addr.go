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

package transport

// NetAddr wraps any net.Addr-shaped value (host:port backends: framed,
// httphijack).
type NetAddr struct {
	Net  string
	Addr string
}

func (a NetAddr) Network() string { return a.Net }
func (a NetAddr) String() string  { return a.Addr }

// NodeAddr is an opaque node identifier, used by backends that route by
// peer identity rather than a dialable network address (e.g. a QUIC
// connection keyed by a pre-established session identity).
type NodeAddr string

func (a NodeAddr) Network() string { return "node" }
func (a NodeAddr) String() string  { return string(a) }

// InmemAddr is the sentinel address reported by the in-memory queue
// transport, which has no network presence.
type InmemAddr string

func (a InmemAddr) Network() string { return "inmem" }
func (a InmemAddr) String() string  { return string(a) }
