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

// Package substream is a transport-agnostic, typed request/response RPC
// core. It binds a user-defined service (a closed set of request and
// response envelope types) to one of four interaction patterns - Rpc,
// ServerStreaming, ClientStreaming, BidiStreaming - over an abstract
// bidirectional substream, and it supplies the client and server engines
// that drive those patterns.
//
// substream does not define a wire codec, a concrete reliable transport, or
// an IDL compiler; it is the layer other packages (transport/inmem,
// transport/framed, transport/quicmux, ...) and user-generated service code
// plug into. See rpcclient and rpcserver for the operations that actually
// open and accept substreams.
package substream
