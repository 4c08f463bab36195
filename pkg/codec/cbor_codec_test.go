package codec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCBORCodecRoundTripsRequestEnvelope(t *testing.T) {
	ctx := context.Background()
	c, err := NewCBORCodec(DefaultCBOROptions())
	require.NoError(t, err)

	in := RequestEnvelope{
		Args:   []any{int64(1), int64(2)},
		Kwargs: map[string]any{"a": int64(1), "b": int64(2)},
	}

	data, err := c.Encode(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	var out RequestEnvelope
	require.NoError(t, c.Decode(ctx, data, &out))
	assert.Equal(t, in.Args, out.Args)
	assert.Equal(t, in.Kwargs, out.Kwargs)
}

func TestCBORCodecRoundTripsResultEnvelope(t *testing.T) {
	ctx := context.Background()
	c, err := NewCBORCodec(DefaultCBOROptions())
	require.NoError(t, err)

	in := ResultEnvelope{
		Success: false,
		Err: &ErrorEnvelope{
			Kind:    "ValueError",
			Message: "boom",
		},
	}

	data, err := c.Encode(ctx, in)
	require.NoError(t, err)

	var out ResultEnvelope
	require.NoError(t, c.Decode(ctx, data, &out))
	assert.Equal(t, in.Success, out.Success)
	require.NotNil(t, out.Err)
	assert.Equal(t, in.Err.Kind, out.Err.Kind)
	assert.Equal(t, in.Err.Message, out.Err.Message)
}

func TestCBORCodecRoundTripsPlainInt(t *testing.T) {
	ctx := context.Background()
	c, err := NewCBORCodec(DefaultCBOROptions())
	require.NoError(t, err)

	data, err := c.Encode(ctx, int64(42))
	require.NoError(t, err)

	var out any
	require.NoError(t, c.Decode(ctx, data, &out))
	assert.Equal(t, int64(42), out)
}

func TestCBORCodecDecodeErrorOnGarbage(t *testing.T) {
	ctx := context.Background()
	c, err := NewCBORCodec(DefaultCBOROptions())
	require.NoError(t, err)

	var out ResultEnvelope
	err = c.Decode(ctx, []byte{0xff, 0xff, 0xff}, &out)
	assert.Error(t, err)
}
