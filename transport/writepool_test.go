package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireWriteBufferIsEmptyAndWritable(t *testing.T) {
	buf := AcquireWriteBuffer()
	require.Zero(t, buf.Len())

	n, err := buf.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf.Bytes()))

	releaseWriteBuffer(buf)
}

func TestReleasedWriteBufferIsResetOnReacquire(t *testing.T) {
	first := AcquireWriteBuffer()
	_, err := first.Write([]byte("stale data"))
	require.NoError(t, err)
	releaseWriteBuffer(first)

	// bytebufferpool.Pool.Put resets Len to 0 on return, so whatever comes
	// back out of Get starts empty even if the pool recycled this exact
	// buffer's backing array.
	for i := 0; i < 8; i++ {
		buf := AcquireWriteBuffer()
		require.Zero(t, buf.Len())
		releaseWriteBuffer(buf)
	}
}
