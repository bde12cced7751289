package mysql

import (
	"github.com/lithdew/bytesutil"
)

// Client capability flags MySQL expects in the login packet (spec §6:
// "long-password, protocol-41, secure-connection, transactions").
const (
	capLongPassword     = 0x0001
	capLongFlag         = 0x0004
	capTransactions     = 0x2000
	capProtocol41       = 0x0200
	capSecureConnection = 0x8000
)

const clientCapabilities = capLongPassword | capLongFlag | capTransactions | capProtocol41 | capSecureConnection

// LoginRequest is the outbound response to the server greeting (spec §4.3
// "Login").
type LoginRequest struct {
	Username string
	Password string
	Database string
	Salt     []byte
	CharsetID byte
}

// encodeLogin assembles the login packet body per spec §4.3: 2-byte client
// capabilities | 2-byte extended capabilities | 4-byte max packet
// (0x00FF_FFFF) | 1-byte charset | 23-byte filler | username | (if
// password non-empty) 20-byte SHA1 challenge response | filler | database.
// Packet number is always 1 (the greeting was packet 0).
func encodeLogin(req *LoginRequest) []byte {
	buf := make([]byte, 0, 64+len(req.Username)+len(req.Database))
	buf = bytesutil.AppendUint16LE(buf, uint16(clientCapabilities&0xffff))
	buf = bytesutil.AppendUint16LE(buf, uint16(clientCapabilities>>16))
	buf = bytesutil.AppendUint32LE(buf, 0x00ff_ffff)
	buf = append(buf, req.CharsetID)
	buf = append(buf, make([]byte, 23)...)
	buf = append(buf, req.Username...)
	buf = append(buf, 0)
	if req.Password != "" {
		resp := scramblePassword(req.Password, req.Salt)
		buf = append(buf, byte(len(resp)))
		buf = append(buf, resp...)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, req.Database...)
	buf = append(buf, 0)
	return framePacket(buf, 1)
}

// comQuery is the COM_QUERY command byte, per the classic MySQL
// command protocol.
const comQuery = 0x03

// encodeQuery wraps sql as a COM_QUERY command packet, sequence number 0
// (a fresh command always restarts the packet sequence).
func encodeQuery(sql string) []byte {
	buf := make([]byte, 0, len(sql)+1)
	buf = append(buf, comQuery)
	buf = append(buf, sql...)
	return framePacket(buf, 0)
}

// comQuit, sent on terminate.
const comQuit = 0x01

func encodeQuit() []byte {
	return framePacket([]byte{comQuit}, 0)
}

// framePacket prepends the 3-byte little-endian length + 1-byte sequence
// header (spec §4.3 "Framing").
func framePacket(payload []byte, seq byte) []byte {
	n := len(payload)
	out := make([]byte, 0, n+4)
	out = append(out, byte(n), byte(n>>8), byte(n>>16), seq)
	out = append(out, payload...)
	return out
}
