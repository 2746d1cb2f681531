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

// Package mapping embeds an inner service's request/response envelopes
// inside an outer envelope, per spec.md §4.5, so a large server can compose
// independently-written sub-services (each against its own small envelope)
// behind one wire envelope.
//
// A Mapper is a pair of conversions, injection up and projection down. It
// holds only two func values, so copying one is cheap by construction — the
// "share, don't copy" requirement falls out of Go's value semantics without
// needing a pointer or refcount.
package mapping

// Mapper embeds InnerReq/InnerRes inside OuterReq/OuterRes. ReqIntoOuter
// injects a request up the chain (total: every InnerReq has an OuterReq).
// ResTryIntoInner projects a response down the chain (partial: an OuterRes
// belonging to a sibling sub-service does not downcast into InnerRes).
type Mapper[OuterReq, OuterRes, InnerReq, InnerRes any] struct {
	ReqIntoOuter    func(InnerReq) OuterReq
	ResTryIntoInner func(OuterRes) (InnerRes, bool)
}

// ReqInto injects r into the outer request envelope.
func (m Mapper[OuterReq, OuterRes, InnerReq, InnerRes]) ReqInto(r InnerReq) OuterReq {
	return m.ReqIntoOuter(r)
}

// ResTryInto attempts to project r down into the inner response envelope.
func (m Mapper[OuterReq, OuterRes, InnerReq, InnerRes]) ResTryInto(r OuterRes) (InnerRes, bool) {
	return m.ResTryIntoInner(r)
}

// Identity is the empty chain: Req and Res map to themselves. Composing any
// Mapper with Identity yields an equivalent Mapper, matching spec.md's "an
// empty chain is the identity".
func Identity[Req, Res any]() Mapper[Req, Res, Req, Res] {
	return Mapper[Req, Res, Req, Res]{
		ReqIntoOuter:    func(r Req) Req { return r },
		ResTryIntoInner: func(r Res) (Res, bool) { return r, true },
	}
}

// Route names a predicate over an outer envelope value: Owns reports
// whether a given outer value belongs to the inner service called Name.
// Carried over from the distilled spec's original Rust implementation (its
// "modularize" example, which runs several service mappings concurrently
// over one listener and routes by outer variant) — a server can use a
// Router to decide *which* mapped sub-service a freshly accepted head
// envelope belongs to before dispatching into that sub-service's own
// Mapper.
type Route[OuterRes any] struct {
	Name string
	Owns func(OuterRes) bool
}

// Router looks up the name of the inner service an outer envelope variant
// belongs to. Routes are tried in order; the first match wins.
type Router[OuterRes any] struct {
	routes []Route[OuterRes]
}

// NewRouter builds a Router over routes, tried in the given order.
func NewRouter[OuterRes any](routes ...Route[OuterRes]) *Router[OuterRes] {
	return &Router[OuterRes]{routes: routes}
}

// Route reports the name of the first route owning res, or ok=false if no
// route claims it.
func (r *Router[OuterRes]) Route(res OuterRes) (string, bool) {
	for _, rt := range r.routes {
		if rt.Owns(res) {
			return rt.Name, true
		}
	}
	return "", false
}

// Chain composes an outer-to-middle Mapper with a middle-to-inner Mapper
// into one outer-to-inner Mapper, walking the link in both directions: a
// request is injected outward through inner then outer; a response is
// projected inward through outer then inner, failing downcast as soon as
// either link fails.
func Chain[OuterReq, OuterRes, MidReq, MidRes, InnerReq, InnerRes any](
	outer Mapper[OuterReq, OuterRes, MidReq, MidRes],
	inner Mapper[MidReq, MidRes, InnerReq, InnerRes],
) Mapper[OuterReq, OuterRes, InnerReq, InnerRes] {
	return Mapper[OuterReq, OuterRes, InnerReq, InnerRes]{
		ReqIntoOuter: func(r InnerReq) OuterReq {
			return outer.ReqIntoOuter(inner.ReqIntoOuter(r))
		},
		ResTryIntoInner: func(r OuterRes) (InnerRes, bool) {
			mid, ok := outer.ResTryIntoInner(r)
			if !ok {
				var zero InnerRes
				return zero, false
			}
			return inner.ResTryIntoInner(mid)
		},
	}
}
