package mysql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFramePacket(t *testing.T) {
	framed := framePacket([]byte("hello"), 3)
	require.Equal(t, byte(5), framed[0])
	require.Equal(t, byte(0), framed[1])
	require.Equal(t, byte(0), framed[2])
	require.Equal(t, byte(3), framed[3])
	require.Equal(t, "hello", string(framed[4:]))
}

func TestEncodeQuery(t *testing.T) {
	framed := encodeQuery("SELECT 1")
	require.Equal(t, byte(comQuery), framed[4])
	require.Equal(t, "SELECT 1", string(framed[5:]))
	require.Equal(t, byte(0), framed[3]) // fresh command restarts sequence
}

func TestEncodeLoginWithPassword(t *testing.T) {
	salt := []byte("01234567890123456789")
	framed := encodeLogin(&LoginRequest{
		Username:  "root",
		Password:  "s3cr3t",
		Database:  "testdb",
		Salt:      salt,
		CharsetID: 0x21,
	})

	require.Equal(t, byte(1), framed[3]) // packet number 1

	body := framed[4:]
	require.Equal(t, byte(clientCapabilities&0xff), body[0])
	require.Equal(t, byte(0x21), body[8]) // charset offset: 2+2+4
	require.Contains(t, string(body), "root")
	require.Contains(t, string(body), "testdb")
}

func TestEncodeLoginNoPassword(t *testing.T) {
	framed := encodeLogin(&LoginRequest{Username: "root", Database: "db", CharsetID: 8})
	require.Contains(t, string(framed), "root")
	require.Contains(t, string(framed), "db")
}
