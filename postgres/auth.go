package postgres

import (
	"crypto/md5"
	"encoding/hex"
)

// hashMD5Password computes PostgreSQL's doubled-MD5 password response
// (spec.md acceptance test #2 and §4.4 "Startup"):
// "md5" + hex(MD5(hex(MD5(password||user)) || salt)).
func hashMD5Password(password, user string, salt []byte) string {
	inner := md5.Sum([]byte(password + user))
	innerHex := hex.EncodeToString(inner[:])

	outer := md5.New()
	outer.Write([]byte(innerHex))
	outer.Write(salt)
	return "md5" + hex.EncodeToString(outer.Sum(nil))
}
