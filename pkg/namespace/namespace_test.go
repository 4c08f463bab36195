package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/atasks-go/atasks/pkg/transport"
)

type fakeRouterBinding struct{ ns Name }

func (f *fakeRouterBinding) Namespace() Name { return f.ns }

func TestManagerAutoCreatesNamespace(t *testing.T) {
	m := NewManager()

	record := m.Get("neverseen")
	assert.NotNil(t, record)
	assert.Nil(t, record.Codec())

	tr := transport.NewLoopbackTransport()
	record.SetTransport(tr)

	again := m.Get("neverseen")
	assert.Same(t, tr, again.Transport().(*transport.LoopbackTransport))
}

func TestManagerBindingsAreLastWriteWinsPerField(t *testing.T) {
	m := NewManager()
	record := m.Get("default")

	first := transport.NewLoopbackTransport()
	second := transport.NewLoopbackTransport()
	record.SetTransport(first)
	record.SetTransport(second)

	assert.Same(t, second, record.Transport())
}

func TestManagerDistinctTransportsPerNamespace(t *testing.T) {
	m := NewManager()
	a := transport.NewLoopbackTransport()
	b := transport.NewLoopbackTransport()

	m.Get("ns-a").SetTransport(a)
	m.Get("ns-b").SetTransport(b)

	assert.Same(t, a, m.Get("ns-a").Transport())
	assert.Same(t, b, m.Get("ns-b").Transport())
	assert.NotSame(t, m.Get("ns-a").Transport(), m.Get("ns-b").Transport())
}

func TestManagerEqualComparesBoundAttributes(t *testing.T) {
	m := NewManager()
	record := m.Get("default")

	tr := transport.NewLoopbackTransport()
	record.SetTransport(tr)

	assert.True(t, m.Equal("default", map[string]any{"transport": tr}))
	assert.False(t, m.Equal("default", map[string]any{"transport": transport.NewLoopbackTransport()}))
	assert.False(t, m.Equal("neverseen", map[string]any{"transport": tr}))
}

func TestRecordRouterBinding(t *testing.T) {
	m := NewManager()
	record := m.Get("default")

	rb := &fakeRouterBinding{ns: Default}
	record.SetRouter(rb)

	assert.Equal(t, Default, record.Router().Namespace())
}
