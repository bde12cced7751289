package postgres

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHashMD5PasswordMatchesAcceptanceScenario exercises spec.md's
// acceptance-test scenario 2: given AUTHENTICATION(MD5, salt=[A,B,C,D]),
// the outbound PASSWORD must equal
// "md5" + hex(MD5(hex(MD5(password||user)) || salt)).
func TestHashMD5PasswordMatchesAcceptanceScenario(t *testing.T) {
	salt := []byte{'A', 'B', 'C', 'D'}
	password, user := "s3cr3t", "alice"

	inner := md5.Sum([]byte(password + user))
	outer := md5.New()
	outer.Write([]byte(hex.EncodeToString(inner[:])))
	outer.Write(salt)
	want := "md5" + hex.EncodeToString(outer.Sum(nil))

	require.Equal(t, want, hashMD5Password(password, user, salt))
}

func TestHashMD5PasswordDifferentUsersDiffer(t *testing.T) {
	salt := []byte{'A', 'B', 'C', 'D'}
	a := hashMD5Password("s3cr3t", "alice", salt)
	b := hashMD5Password("s3cr3t", "bob", salt)
	require.NotEqual(t, a, b)
}

func TestHashMD5PasswordDifferentSaltsDiffer(t *testing.T) {
	a := hashMD5Password("s3cr3t", "alice", []byte{'A', 'B', 'C', 'D'})
	b := hashMD5Password("s3cr3t", "alice", []byte{'W', 'X', 'Y', 'Z'})
	require.NotEqual(t, a, b)
}
