package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atasks-go/atasks/pkg/codec"
	"github.com/atasks-go/atasks/pkg/namespace"
	"github.com/atasks-go/atasks/pkg/task"
	"github.com/atasks-go/atasks/pkg/transport"
)

// scenarioRig mirrors the source test suite's scenarios.py: task_one,
// task_two and task_three are registered against a loopback transport, and
// the request_sequence and request_parallel bodies are played by
// TestScenarioSequence and TestScenarioParallel as client-side calls rather
// than registered tasks. Delays are scaled down from the source's
// 1s/2s so the suite stays fast; the ordering and assertions are identical.
type scenarioRig struct {
	ns        namespace.Name
	r         *Router
	taskOne   task.Stub
	taskTwo   task.Stub
	taskThree task.Stub
}

func newScenarioRig(t *testing.T) *scenarioRig {
	t.Helper()
	nsMgr := namespace.NewManager()
	ns := namespace.Name("scenarios")

	c, err := codec.NewCBORCodec(codec.DefaultCBOROptions())
	require.NoError(t, err)
	record := nsMgr.Get(ns)
	record.SetCodec(c)

	tr := transport.NewLoopbackTransport()
	require.NoError(t, tr.Connect(context.Background()))
	record.SetTransport(tr)

	r := Get(nsMgr, ns, logr.Discard())
	require.NoError(t, r.Activate(context.Background(), tr))

	rig := &scenarioRig{ns: ns, r: r}

	rig.taskOne, err = task.Register(r, "task_one", func(ctx context.Context, args task.Args) (any, error) {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return args.Positional[0], nil
	})
	require.NoError(t, err)

	rig.taskTwo, err = task.Register(r, "task_two", func(ctx context.Context, args task.Args) (any, error) {
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return args.Positional[0], nil
	})
	require.NoError(t, err)

	rig.taskThree, err = task.Register(r, "task_three", func(_ context.Context, args task.Args) (any, error) {
		return args.Positional[0], nil
	})
	require.NoError(t, err)

	return rig
}

// S1: single call with a delay.
func TestScenarioSingleCall(t *testing.T) {
	rig := newScenarioRig(t)
	result, err := rig.taskOne.Call(context.Background(), int64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result)
}

// S2: immediate call.
func TestScenarioImmediateCall(t *testing.T) {
	rig := newScenarioRig(t)
	result, err := rig.taskThree.Call(context.Background(), int64(24))
	require.NoError(t, err)
	assert.Equal(t, int64(24), result)
}

// S3: sequence -- task_one(1) then task_two(3), each asserted in turn.
func TestScenarioSequence(t *testing.T) {
	rig := newScenarioRig(t)
	ctx := context.Background()

	a, err := rig.taskOne.Call(ctx, int64(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), a)

	b, err := rig.taskTwo.Call(ctx, int64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), b)
}

// S4: parallel -- task_one(0..4) and task_two(0..4) concurrently, returning
// results in call order: [0,1,2,3,4,0,1,2,3,4].
func TestScenarioParallel(t *testing.T) {
	rig := newScenarioRig(t)
	ctx := context.Background()

	type call struct {
		stub task.Stub
		arg  int64
	}
	calls := make([]call, 0, 10)
	for a := int64(0); a < 5; a++ {
		calls = append(calls, call{rig.taskOne, a})
	}
	for a := int64(0); a < 5; a++ {
		calls = append(calls, call{rig.taskTwo, a})
	}

	results := make([]any, len(calls))
	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c call) {
			defer wg.Done()
			result, err := c.stub.Call(ctx, c.arg)
			require.NoError(t, err)
			results[i] = result
		}(i, c)
	}
	wg.Wait()

	expected := []any{int64(0), int64(1), int64(2), int64(3), int64(4), int64(0), int64(1), int64(2), int64(3), int64(4)}
	assert.Equal(t, expected, results)
}

// S5: activate/deactivate cycle completes without error, and S1-S4 still
// pass afterward.
func TestScenarioActivateCycle(t *testing.T) {
	rig := newScenarioRig(t)
	ctx := context.Background()
	tr := rig.r.server

	require.NoError(t, rig.r.Activate(ctx, tr))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, rig.r.Deactivate(ctx))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, rig.r.Activate(ctx, tr))

	result, err := rig.taskOne.Call(ctx, int64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result)

	result, err = rig.taskThree.Call(ctx, int64(24))
	require.NoError(t, err)
	assert.Equal(t, int64(24), result)
}

// S6: calling a name never registered on the server raises JobNotFound
// client-side, with the name as its message.
func TestScenarioMissingTask(t *testing.T) {
	rig := newScenarioRig(t)
	_, err := rig.r.SendRequest(context.Background(), "task_never_registered", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task_never_registered")
}
