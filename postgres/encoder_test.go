package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameMessage(t *testing.T) {
	framed := frameMessage('p', []byte("hi\x00"))
	require.Equal(t, byte('p'), framed[0])
	require.Equal(t, []byte{0, 0, 0, 7}, framed[1:5])
	require.Equal(t, "hi\x00", string(framed[5:]))
}

func TestEncodeStartup(t *testing.T) {
	out := encodeStartup("alice", "mydb")
	require.Equal(t, []byte{0, 3, 0, 0}, out[4:8]) // protocol version 3.0
	require.Contains(t, string(out), "user\x00alice\x00")
	require.Contains(t, string(out), "database\x00mydb\x00")
	require.Equal(t, byte(0), out[len(out)-1]) // terminating null
}

func TestEncodePassword(t *testing.T) {
	framed := encodePassword("s3cr3t")
	require.Equal(t, byte('p'), framed[0])
	require.Equal(t, "s3cr3t\x00", string(framed[5:]))
}

func TestEncodeQuerySequenceWithParse(t *testing.T) {
	out := encodeQuerySequence("S_1", "SELECT 1", false)
	require.True(t, strings.HasPrefix(string(out), "P"))
	require.Contains(t, string(out), "S_1\x00SELECT 1\x00")
	require.Contains(t, string(out), "B")
	require.Contains(t, string(out), "D")
	require.Contains(t, string(out), "E")
	require.True(t, strings.HasSuffix(string(out), "S\x00\x00\x00\x04"))
}

func TestEncodeQuerySequenceSkipsParseOnCacheHit(t *testing.T) {
	out := encodeQuerySequence("S_1", "BEGIN", true)
	require.False(t, strings.HasPrefix(string(out), "P"))
	require.True(t, strings.HasPrefix(string(out), "B"))
}

func TestEncodeTerminate(t *testing.T) {
	framed := encodeTerminate()
	require.Equal(t, []byte{'X', 0, 0, 0, 4}, framed)
}
