package rpcclient_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/substream"
	"go.uber.org/substream/mapping"
	"go.uber.org/substream/rpcclient"
	"go.uber.org/substream/rpcserver"
	"go.uber.org/substream/transport/inmem"
)

type addReq struct{ A, B int64 }
type addRes struct{ Sum int64 }

func addDesc() substream.RPCDesc[addReq, addRes, addReq, int64] {
	return substream.RPCDesc[addReq, addRes, addReq, int64]{
		ToRequest:    func(m addReq) addReq { return m },
		FromResponse: func(r addRes) (int64, bool) { return r.Sum, true },
	}
}

// TestRpcConcurrentCalls is scenario S1: three concurrent Add calls over an
// in-memory channel yield the unordered set of expected sums.
func TestRpcConcurrentCalls(t *testing.T) {
	ch := inmem.New[addReq, addRes]("add")
	defer ch.Close()

	server := rpcserver.New[addReq, addRes](ch.Listener())
	go func() {
		for i := 0; i < 3; i++ {
			head, sch, err := server.Accept(context.Background())
			if err != nil {
				return
			}
			go func(head addReq, sch *rpcserver.ServerChannel[addReq, addRes]) {
				_ = rpcserver.Rpc(context.Background(), sch,
					func(sum int64) addRes { return addRes{Sum: sum} },
					struct{}{}, head,
					func(_ struct{}, m addReq) int64 { return m.A + m.B },
				)
			}(head, sch)
		}
	}()

	client := rpcclient.New[addReq, addRes, addReq, addRes](ch.Connector(), mapping.Identity[addReq, addRes]())
	desc := addDesc()

	var wg sync.WaitGroup
	results := make(chan int64, 3)
	for _, b := range []int64{0, 1, 2} {
		wg.Add(1)
		go func(b int64) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			sum, err := rpcclient.Rpc(ctx, client, desc, addReq{A: 2, B: b})
			require.NoError(t, err)
			results <- sum
		}(b)
	}
	wg.Wait()
	close(results)

	got := map[int64]bool{}
	for r := range results {
		got[r] = true
	}
	assert.Equal(t, map[int64]bool{2: true, 3: true, 4: true}, got)
}

type tickReq struct{}
type tickRes struct{ N int }

// TestServerStreamingFaithfulness is scenario S2: the client observes the
// handler's emitted sequence in order.
func TestServerStreamingFaithfulness(t *testing.T) {
	ch := inmem.New[tickReq, tickRes]("tick")
	defer ch.Close()

	server := rpcserver.New[tickReq, tickRes](ch.Listener())
	go func() {
		head, sch, err := server.Accept(context.Background())
		require.NoError(t, err)
		_ = rpcserver.ServerStreaming(context.Background(), sch,
			func(n int) tickRes { return tickRes{N: n} },
			struct{}{}, head,
			func(ctx context.Context, _ struct{}, _ tickReq, yield func(int) error) error {
				for n := 0; n < 3; n++ {
					if err := yield(n); err != nil {
						return err
					}
				}
				return nil
			},
		)
	}()

	client := rpcclient.New[tickReq, tickRes, tickReq, tickRes](ch.Connector(), mapping.Identity[tickReq, tickRes]())
	desc := substream.ServerStreamingDesc[tickReq, tickRes, tickReq, int]{
		ToRequest:    func(m tickReq) tickReq { return m },
		FromResponse: func(r tickRes) (int, bool) { return r.N, true },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := rpcclient.ServerStreaming(ctx, client, desc, tickReq{})
	require.NoError(t, err)

	var got []int
	for {
		n, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, n)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

type sumUpdateReq struct {
	head  bool
	delta int64
}
type sumRes struct{ Total int64 }

// TestClientStreamingCommitOrder is property 3: the response is observed
// only after the client closes the update sink.
func TestClientStreamingCommitOrder(t *testing.T) {
	ch := inmem.New[sumUpdateReq, sumRes]("sum")
	defer ch.Close()

	committed := make(chan struct{})
	server := rpcserver.New[sumUpdateReq, sumRes](ch.Listener())
	go func() {
		head, sch, err := server.Accept(context.Background())
		require.NoError(t, err)
		_ = rpcserver.ClientStreaming(context.Background(), sch,
			func(total int64) sumRes { return sumRes{Total: total} },
			func(r sumUpdateReq) (int64, bool) {
				if r.head {
					return 0, false
				}
				return r.delta, true
			},
			struct{}{}, head,
			func(ctx context.Context, _ struct{}, _ sumUpdateReq, updates *rpcserver.UpdateStream[sumUpdateReq, int64]) int64 {
				var total int64
				for {
					delta, err := updates.Next(ctx)
					if err == io.EOF {
						break
					}
					total += delta
				}
				close(committed)
				return total
			},
		)
	}()

	client := rpcclient.New[sumUpdateReq, sumRes, sumUpdateReq, sumRes](ch.Connector(), mapping.Identity[sumUpdateReq, sumRes]())
	desc := substream.ClientStreamingDesc[sumUpdateReq, sumRes, sumUpdateReq, int64, int64]{
		ToRequest:       func(m sumUpdateReq) sumUpdateReq { return m },
		UpdateToRequest: func(delta int64) sumUpdateReq { return sumUpdateReq{delta: delta} },
		FromResponse:    func(r sumRes) (int64, bool) { return r.Total, true },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sink, future, err := rpcclient.ClientStreaming(ctx, client, desc, sumUpdateReq{head: true})
	require.NoError(t, err)

	require.NoError(t, sink.Send(ctx, 1))
	require.NoError(t, sink.Send(ctx, 2))
	require.NoError(t, sink.Send(ctx, 3))

	select {
	case <-committed:
		t.Fatal("response observed before update sink closed")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, sink.Close())
	total, err := future.Wait(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
}

func bidiDesc() substream.BidiStreamingDesc[sumUpdateReq, sumRes, sumUpdateReq, int64, int64] {
	return substream.BidiStreamingDesc[sumUpdateReq, sumRes, sumUpdateReq, int64, int64]{
		ToRequest:       func(m sumUpdateReq) sumUpdateReq { return m },
		UpdateToRequest: func(delta int64) sumUpdateReq { return sumUpdateReq{delta: delta} },
		FromResponse:    func(r sumRes) (int64, bool) { return r.Total, true },
	}
}

func bidiUpdateFilter(r sumUpdateReq) (int64, bool) {
	if r.head {
		return 0, false
	}
	return r.delta, true
}

// TestBidiStreamingIndependentOrdering exercises rpcclient.Bidi and
// rpcserver.Bidi end-to-end: the server reads each update and immediately
// yields the running total, so the client observes one response per update,
// independently of when the update sink is closed.
func TestBidiStreamingIndependentOrdering(t *testing.T) {
	ch := inmem.New[sumUpdateReq, sumRes]("bidi-sum")
	defer ch.Close()

	server := rpcserver.New[sumUpdateReq, sumRes](ch.Listener())
	go func() {
		head, sch, err := server.Accept(context.Background())
		require.NoError(t, err)
		_ = rpcserver.Bidi(context.Background(), sch,
			func(total int64) sumRes { return sumRes{Total: total} },
			bidiUpdateFilter,
			struct{}{}, head,
			func(ctx context.Context, _ struct{}, _ sumUpdateReq, updates *rpcserver.UpdateStream[sumUpdateReq, int64], yield func(int64) error) error {
				var total int64
				for {
					delta, err := updates.Next(ctx)
					if err == io.EOF {
						return nil
					}
					if err != nil {
						return err
					}
					total += delta
					if err := yield(total); err != nil {
						return err
					}
				}
			},
		)
	}()

	client := rpcclient.New[sumUpdateReq, sumRes, sumUpdateReq, sumRes](ch.Connector(), mapping.Identity[sumUpdateReq, sumRes]())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sink, stream, err := rpcclient.Bidi(ctx, client, bidiDesc(), sumUpdateReq{head: true})
	require.NoError(t, err)

	go func() {
		for _, delta := range []int64{1, 2, 3} {
			_ = sink.Send(ctx, delta)
		}
		_ = sink.Close()
	}()

	var got []int64
	for {
		total, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, total)
	}
	assert.Equal(t, []int64{1, 3, 6}, got)
}

// TestBidiHandlerPanicClosesPromptly is the Bidi-pattern analogue of
// rpcserver's Rpc-pattern panic test: a handler panic must close the send
// half immediately, not leave the client waiting on its own context budget.
func TestBidiHandlerPanicClosesPromptly(t *testing.T) {
	ch := inmem.New[sumUpdateReq, sumRes]("bidi-panic")
	defer ch.Close()

	server := rpcserver.New[sumUpdateReq, sumRes](ch.Listener())
	go func() {
		head, sch, err := server.Accept(context.Background())
		require.NoError(t, err)
		_ = rpcserver.Bidi(context.Background(), sch,
			func(total int64) sumRes { return sumRes{Total: total} },
			bidiUpdateFilter,
			struct{}{}, head,
			func(ctx context.Context, _ struct{}, _ sumUpdateReq, updates *rpcserver.UpdateStream[sumUpdateReq, int64], yield func(int64) error) error {
				_, _ = updates.Next(ctx)
				panic("boom")
			},
		)
	}()

	client := rpcclient.New[sumUpdateReq, sumRes, sumUpdateReq, sumRes](ch.Connector(), mapping.Identity[sumUpdateReq, sumRes]())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sink, stream, err := rpcclient.Bidi(ctx, client, bidiDesc(), sumUpdateReq{head: true})
	require.NoError(t, err)
	require.NoError(t, sink.Send(ctx, 1))

	done := make(chan error, 1)
	go func() {
		_, err := stream.Next(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(50 * time.Millisecond):
		t.Fatal("client did not observe close promptly after server handler panic")
	}
}

// TestMapperCompositionProperty covers the identity case of property 7: a
// client built with mapping.Identity returns exactly the handler's result
// (10+5=15), as a client speaking the outer envelope directly would.
func TestMapperCompositionProperty(t *testing.T) {
	ch := inmem.New[addReq, addRes]("mapped-add")
	defer ch.Close()

	server := rpcserver.New[addReq, addRes](ch.Listener())
	go func() {
		head, sch, err := server.Accept(context.Background())
		require.NoError(t, err)
		_ = rpcserver.Rpc(context.Background(), sch,
			func(sum int64) addRes { return addRes{Sum: sum} },
			struct{}{}, head,
			func(_ struct{}, m addReq) int64 { return m.A + m.B },
		)
	}()

	identityMapped := rpcclient.New[addReq, addRes, addReq, addRes](ch.Connector(), mapping.Identity[addReq, addRes]())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sum, err := rpcclient.Rpc(ctx, identityMapped, addDesc(), addReq{A: 10, B: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 15, sum)
}
