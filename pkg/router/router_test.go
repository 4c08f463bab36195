package router

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atasks-go/atasks/pkg/ataskerr"
	"github.com/atasks-go/atasks/pkg/codec"
	"github.com/atasks-go/atasks/pkg/namespace"
	"github.com/atasks-go/atasks/pkg/task"
	"github.com/atasks-go/atasks/pkg/transport"
)

// wireUp builds an isolated namespace with a CBOR codec, a loopback
// transport, and an activated router -- the minimal rig the end-to-end
// scenarios run against.
func wireUp(t *testing.T) (*namespace.Manager, namespace.Name, *Router) {
	t.Helper()
	nsMgr := namespace.NewManager()
	ns := namespace.Name(fmt.Sprintf("test-%s", t.Name()))

	c, err := codec.NewCBORCodec(codec.DefaultCBOROptions())
	require.NoError(t, err)
	record := nsMgr.Get(ns)
	record.SetCodec(c)

	tr := transport.NewLoopbackTransport()
	require.NoError(t, tr.Connect(context.Background()))
	record.SetTransport(tr)

	r := Get(nsMgr, ns, logr.Discard())
	require.NoError(t, r.Activate(context.Background(), tr))

	return nsMgr, ns, r
}

func TestRouterSingleCall(t *testing.T) {
	_, _, r := wireUp(t)
	ctx := context.Background()

	stub, err := task.Register(r, "task_one", func(_ context.Context, args task.Args) (any, error) {
		return args.Positional[0], nil
	})
	require.NoError(t, err)

	result, err := stub.Call(ctx, int64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result)
}

func TestRouterDuplicateRegistrationFails(t *testing.T) {
	_, _, r := wireUp(t)

	fn := func(_ context.Context, _ task.Args) (any, error) { return nil, nil }
	_, err := task.Register(r, "dup", fn)
	require.NoError(t, err)

	_, err = task.Register(r, "dup", fn)
	require.Error(t, err)
	var dup *ataskerr.DuplicateRegistrationError
	assert.ErrorAs(t, err, &dup)
}

func TestRouterRemoteExceptionFidelity(t *testing.T) {
	_, _, r := wireUp(t)
	ctx := context.Background()

	stub, err := task.Register(r, "boom", func(_ context.Context, _ task.Args) (any, error) {
		return nil, fmt.Errorf("kaboom")
	})
	require.NoError(t, err)

	_, err = stub.Call(ctx)
	require.Error(t, err)
	var remote *ataskerr.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "kaboom")
}

func TestRouterMissingTaskReturnsJobNotFound(t *testing.T) {
	nsMgr, ns, r := wireUp(t)
	ctx := context.Background()
	_ = nsMgr
	_ = ns

	_, err := r.SendRequest(ctx, "never_registered", nil, nil)
	require.Error(t, err)
	var jnf *ataskerr.JobNotFoundError
	require.ErrorAs(t, err, &jnf)
	assert.Equal(t, "never_registered", jnf.Name)
}

func TestRouterActivateIsIdempotent(t *testing.T) {
	nsMgr, ns, r := wireUp(t)
	ctx := context.Background()
	tr := transport.NewLoopbackTransport()
	nsMgr.Get(ns).SetTransport(tr)

	require.NoError(t, r.Activate(ctx, tr))
	require.NoError(t, r.Activate(ctx, tr))

	called := 0
	// Re-registering the callback through Activate's no-op path must not
	// install it twice: assert a single task call only triggers one
	// dispatch, not two.
	stub, err := task.Register(r, "count", func(_ context.Context, _ task.Args) (any, error) {
		called++
		return nil, nil
	})
	require.NoError(t, err)

	_, err = stub.Call(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, called)
}

func TestRouterActivateSwapsTransport(t *testing.T) {
	_, ns, r := wireUp(t)
	ctx := context.Background()

	t1 := transport.NewLoopbackTransport()
	t2 := transport.NewLoopbackTransport()

	require.NoError(t, r.Activate(ctx, t1))
	require.NoError(t, r.Activate(ctx, t2))

	// t1 must no longer deliver: its callback was unregistered when t2
	// became active.
	_, delivered, err := t1.SendRequest(ctx, "whatever", nil)
	require.Error(t, err)
	assert.False(t, delivered)

	_ = ns
}

func TestRouterNoCodecRegisteredFailsLocally(t *testing.T) {
	nsMgr := namespace.NewManager()
	ns := namespace.Name("no-codec")
	tr := transport.NewLoopbackTransport()
	nsMgr.Get(ns).SetTransport(tr)

	r := Get(nsMgr, ns, logr.Discard())
	_, err := r.SendRequest(context.Background(), "anything", nil, nil)
	assert.ErrorIs(t, err, ataskerr.ErrNoCodecRegistered)
}

func TestRouterNoTransportRegisteredFailsLocally(t *testing.T) {
	nsMgr := namespace.NewManager()
	ns := namespace.Name("no-transport")
	c, err := codec.NewCBORCodec(codec.DefaultCBOROptions())
	require.NoError(t, err)
	nsMgr.Get(ns).SetCodec(c)

	r := Get(nsMgr, ns, logr.Discard())
	_, err = r.SendRequest(context.Background(), "anything", nil, nil)
	assert.ErrorIs(t, err, ataskerr.ErrNoClientTransport)
}
