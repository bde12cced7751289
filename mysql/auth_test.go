package mysql

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScramblePasswordProperties(t *testing.T) {
	salt := []byte("01234567890123456789")

	resp := scramblePassword("s3cr3t", salt)
	require.Len(t, resp, sha1.Size)

	stage1 := sha1.Sum([]byte("s3cr3t"))
	stage2 := sha1.Sum(stage1[:])
	h := sha1.New()
	h.Write(salt)
	h.Write(stage2[:])
	scramble := h.Sum(nil)

	// scramblePassword XORs SHA1(password) with this scramble, so XORing
	// the response with the scramble again must recover SHA1(password).
	recovered := make([]byte, len(resp))
	for i := range recovered {
		recovered[i] = resp[i] ^ scramble[i]
	}
	require.Equal(t, stage1[:], recovered)
}

func TestScramblePasswordDifferentSaltsDiffer(t *testing.T) {
	a := scramblePassword("s3cr3t", []byte("aaaaaaaaaaaaaaaaaaaa"))
	b := scramblePassword("s3cr3t", []byte("bbbbbbbbbbbbbbbbbbbb"))
	require.NotEqual(t, a, b)
}
