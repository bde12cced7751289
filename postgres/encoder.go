package postgres

import (
	"github.com/lithdew/bytesutil"
)

// frameMessage prepends a 1-byte tag and 4-byte big-endian length
// (inclusive of the length field itself, per spec §4.4 "Framing") to
// payload.
func frameMessage(tag byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+5)
	out = append(out, tag)
	out = bytesutil.AppendUint32BE(out, uint32(len(payload)+4))
	out = append(out, payload...)
	return out
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

const protocolVersion3 = 0x00030000

// encodeStartup builds the untagged StartupMessage (spec §4.4 "Startup"):
// protocol version, then name/value parameter pairs, then a final null.
func encodeStartup(user, database string) []byte {
	body := bytesutil.AppendUint32BE(nil, protocolVersion3)
	body = appendCString(body, "user")
	body = appendCString(body, user)
	body = appendCString(body, "database")
	body = appendCString(body, database)
	body = appendCString(body, "client_encoding")
	body = appendCString(body, "UNICODE")
	body = appendCString(body, "DateStyle")
	body = appendCString(body, "ISO")
	body = append(body, 0)

	out := bytesutil.AppendUint32BE(nil, uint32(len(body)+4))
	return append(out, body...)
}

// encodePassword builds the 'p' PasswordMessage.
func encodePassword(password string) []byte {
	return frameMessage('p', appendCString(nil, password))
}

// encodeParse builds the 'P' Parse message: an (anonymous, unless name is
// non-empty) statement name, the SQL text, and zero declared parameter
// types (spec §4.4 "Query execution" doesn't use typed parameters).
func encodeParse(statementName, sql string) []byte {
	body := appendCString(nil, statementName)
	body = appendCString(body, sql)
	body = bytesutil.AppendUint16BE(body, 0) // numParamTypes
	return frameMessage('P', body)
}

// encodeBind builds the 'B' Bind message binding the default unnamed
// portal to statementName, with no parameters and all-text result format
// (spec §4.4: "Bind(default portal/statement)").
func encodeBind(statementName string) []byte {
	body := appendCString(nil, "") // portal name: unnamed
	body = appendCString(body, statementName)
	body = bytesutil.AppendUint16BE(body, 0) // numFormatCodes
	body = bytesutil.AppendUint16BE(body, 0) // numParams
	body = bytesutil.AppendUint16BE(body, 0) // numResultFormatCodes (all text)
	return frameMessage('B', body)
}

// encodeDescribe builds the 'D' Describe message for the default portal.
func encodeDescribe() []byte {
	body := []byte{'P'}
	body = appendCString(body, "")
	return frameMessage('D', body)
}

// encodeExecute builds the 'E' Execute message for the default portal with
// no row limit.
func encodeExecute() []byte {
	body := appendCString(nil, "")
	body = bytesutil.AppendUint32BE(body, 0)
	return frameMessage('E', body)
}

// encodeSync builds the 'S' Sync message that closes an extended-query
// pipeline and elicits exactly one ReadyForQuery.
func encodeSync() []byte {
	return frameMessage('S', nil)
}

// encodeTerminate builds the 'X' Terminate message.
func encodeTerminate() []byte {
	return frameMessage('X', nil)
}

// encodeQuerySequence assembles the full Parse|Bind|Describe|Execute|Sync
// frame sequence for one SQL statement (spec §4.4 "Query execution").
// parseSkipped is true when statementName came from the statement cache, in
// which case Parse is elided.
func encodeQuerySequence(statementName, sql string, parseSkipped bool) []byte {
	var out []byte
	if !parseSkipped {
		out = append(out, encodeParse(statementName, sql)...)
	}
	out = append(out, encodeBind(statementName)...)
	out = append(out, encodeDescribe()...)
	out = append(out, encodeExecute()...)
	out = append(out, encodeSync()...)
	return out
}
