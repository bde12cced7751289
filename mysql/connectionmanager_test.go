package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adbcj-go/adbcj"
)

func TestCloseOnEmptyManagerSettlesImmediately(t *testing.T) {
	m := NewConnectionManager("127.0.0.1:0", "test")

	fut, err := m.Close(true)
	require.NoError(t, err)

	_, err = fut.Get()
	require.NoError(t, err)
}

func TestCloseCalledTwiceReturnsSameFuture(t *testing.T) {
	m := NewConnectionManager("127.0.0.1:0", "test")

	first, err := m.Close(false)
	require.NoError(t, err)
	second, err := m.Close(true)
	require.NoError(t, err)

	require.Same(t, first, second)
}

func TestConnectAfterCloseIsRejected(t *testing.T) {
	m := NewConnectionManager("127.0.0.1:0", "test")

	_, err := m.Close(false)
	require.NoError(t, err)

	_, err = m.Connect(context.Background())
	require.ErrorIs(t, err, adbcj.ErrSessionClosed)
}
