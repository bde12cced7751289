package mysql

import "crypto/sha1"

// scramblePassword computes the classic MySQL 20-byte SHA1-based challenge
// response (spec §6 "authentication via the classic 20-byte SHA1-based
// challenge"): SHA1(password) XOR SHA1(salt + SHA1(SHA1(password))).
func scramblePassword(password string, salt []byte) []byte {
	stage1 := sha1.Sum([]byte(password))
	stage2 := sha1.Sum(stage1[:])

	h := sha1.New()
	h.Write(salt)
	h.Write(stage2[:])
	scramble := h.Sum(nil)

	out := make([]byte, len(stage1))
	for i := range out {
		out[i] = stage1[i] ^ scramble[i]
	}
	return out
}
