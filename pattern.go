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

package substream

// Pattern names one of the four interaction patterns a message may be
// driven under. The four constants below are its only named values; String
// reports "Unknown" for any other value converted to Pattern.
type Pattern int

const (
	// Rpc is single request, single response.
	Rpc Pattern = iota
	// ServerStreaming is single request, a stream of responses.
	ServerStreaming
	// ClientStreaming is a stream of updates committed by half-close,
	// single response.
	ClientStreaming
	// BidiStreaming is a stream of updates and a stream of responses, each
	// independently ordered.
	BidiStreaming
)

func (p Pattern) String() string {
	switch p {
	case Rpc:
		return "Rpc"
	case ServerStreaming:
		return "ServerStreaming"
	case ClientStreaming:
		return "ClientStreaming"
	case BidiStreaming:
		return "BidiStreaming"
	default:
		return "Unknown"
	}
}

// Message is implemented by the four pattern descriptor types below. It
// exists so generic code that only needs to know which pattern a
// declaration is bound to (not its concrete request/response/update types)
// can accept any of the four without a type switch.
type Message interface {
	Pattern() Pattern
}

// RPCDesc declares that a message M is driven under the Rpc pattern: a
// value of M is carried as the substream's head envelope, and exactly one
// Resp is read back.
//
// Req and Res are the service's request and response envelope types
// (S.Req, S.Res in spec.md's terms). ToRequest embeds M into Req
// (injective, total); FromResponse is the partial inverse that downcasts a
// Res value into M's declared Resp, returning ok=false if the variant
// does not belong to M's response type.
type RPCDesc[Req, Res, M, Resp any] struct {
	ToRequest    func(M) Req
	FromResponse func(Res) (Resp, bool)
}

// Pattern implements Message.
func (RPCDesc[Req, Res, M, Resp]) Pattern() Pattern { return Rpc }

// ServerStreamingDesc declares that a message M is driven under the
// ServerStreaming pattern: one head envelope, a stream of Resp values back.
type ServerStreamingDesc[Req, Res, M, Resp any] struct {
	ToRequest    func(M) Req
	FromResponse func(Res) (Resp, bool)
}

// Pattern implements Message.
func (ServerStreamingDesc[Req, Res, M, Resp]) Pattern() Pattern { return ServerStreaming }

// ClientStreamingDesc declares that a message M is driven under the
// ClientStreaming pattern: one head envelope, 0..N Update values, a
// half-close, then one Resp.
type ClientStreamingDesc[Req, Res, M, Update, Resp any] struct {
	ToRequest       func(M) Req
	UpdateToRequest func(Update) Req
	FromResponse    func(Res) (Resp, bool)
}

// Pattern implements Message.
func (ClientStreamingDesc[Req, Res, M, Update, Resp]) Pattern() Pattern { return ClientStreaming }

// BidiStreamingDesc declares that a message M is driven under the
// BidiStreaming pattern: one head envelope, 0..N Update values, 0..M Resp
// values, independently ordered per direction.
type BidiStreamingDesc[Req, Res, M, Update, Resp any] struct {
	ToRequest       func(M) Req
	UpdateToRequest func(Update) Req
	FromResponse    func(Res) (Resp, bool)
}

// Pattern implements Message.
func (BidiStreamingDesc[Req, Res, M, Update, Resp]) Pattern() Pattern { return BidiStreaming }
