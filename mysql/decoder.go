package mysql

import (
	"bytes"

	"github.com/lithdew/bytesutil"

	"github.com/adbcj-go/adbcj"
)

// decoderState is the per-session state machine of spec §4.3.
type decoderState int

const (
	stateConnecting decoderState = iota
	stateResponse
	stateField
	stateFieldEOF
	stateRow
)

// Decoder implements transport.Decoder for the MySQL wire protocol:
// 3-byte little-endian length + 1-byte packet number framing, then the
// CONNECTING/RESPONSE/FIELD/FIELD_EOF/ROW state machine (spec §4.3).
// Grounded on MysqlMessageDecoder.doDecode (original_source), translated
// from MINA's cumulative-buffer decoder into an explicit rewind loop.
type Decoder struct {
	buf   []byte
	state decoderState

	fieldCount    int
	fieldsSeen    int
	pendingFields []ResultSetFieldResponse
}

// NewDecoder returns a decoder primed to expect the initial handshake.
func NewDecoder() *Decoder {
	return &Decoder{state: stateConnecting}
}

// Decode implements transport.Decoder. data is appended to the internal
// buffer; as many complete packets as are available are drained, each
// producing exactly one emit call. A trailing partial packet is left
// buffered for the next call (spec §4.3 "Framing": "requires at least
// length+4 bytes before emitting a message; otherwise rewinds").
func (d *Decoder) Decode(data []byte, emit func(msg any)) error {
	d.buf = append(d.buf, data...)
	for {
		if len(d.buf) < 4 {
			return nil
		}
		length := int(d.buf[0]) | int(d.buf[1])<<8 | int(d.buf[2])<<16
		if len(d.buf) < length+4 {
			return nil
		}
		seqByte := d.buf[3]
		_ = seqByte
		payload := d.buf[4 : 4+length]
		d.buf = d.buf[4+length:]

		msg, err := d.decodeOne(payload)
		if err != nil {
			return err
		}
		if msg != nil {
			emit(msg)
		}
	}
}

func (d *Decoder) decodeOne(payload []byte) (any, error) {
	switch d.state {
	case stateConnecting:
		d.state = stateResponse
		return decodeGreeting(payload)
	case stateResponse:
		if len(payload) == 0 {
			return nil, adbcj.NewProtocolError("mysql: empty response packet")
		}
		switch payload[0] {
		case 0x00:
			return decodeOk(payload[1:])
		case 0xff:
			return decodeError(payload[1:])
		default:
			count, _, err := readLengthEncodedInt(payload)
			if err != nil {
				return nil, err
			}
			d.fieldCount = int(count)
			d.fieldsSeen = 0
			d.pendingFields = make([]ResultSetFieldResponse, 0, d.fieldCount)
			d.state = stateField
			return &ResultSetResponse{FieldCount: count}, nil
		}
	case stateField:
		f, err := decodeField(payload)
		if err != nil {
			return nil, err
		}
		d.fieldsSeen++
		d.pendingFields = append(d.pendingFields, *f)
		if d.fieldsSeen >= d.fieldCount {
			d.state = stateFieldEOF
		}
		return f, nil
	case stateFieldEOF:
		if len(payload) == 0 || payload[0] != 0xfe {
			return nil, adbcj.NewProtocolError("mysql: expected field EOF marker")
		}
		d.state = stateRow
		return decodeEof(payload[1:], EofField)
	case stateRow:
		if len(payload) > 0 && payload[0] == 0xfe && len(payload) < 9 {
			d.state = stateResponse
			return decodeEof(payload[1:], EofRow)
		}
		return decodeRow(payload, d.pendingFields)
	default:
		return nil, adbcj.NewProtocolError("mysql: decoder in unknown state")
	}
}

func decodeGreeting(p []byte) (*ServerGreeting, error) {
	if len(p) < 1 {
		return nil, adbcj.NewProtocolError("mysql: truncated greeting")
	}
	g := &ServerGreeting{ProtocolVersion: p[0]}
	p = p[1:]

	nullIdx := bytes.IndexByte(p, 0)
	if nullIdx < 0 {
		return nil, adbcj.NewProtocolError("mysql: greeting missing server version terminator")
	}
	g.ServerVersion = string(p[:nullIdx])
	p = p[nullIdx+1:]

	if len(p) < 4+8+1+2+1+2+13+12+1 {
		return nil, adbcj.NewProtocolError("mysql: truncated greeting body")
	}
	g.ThreadID = bytesutil.Uint32LE(p[:4])
	p = p[4:]
	salt1 := append([]byte(nil), p[:8]...)
	p = p[8+1:] // salt part 1, filler
	g.ServerCapabilities = bytesutil.Uint16LE(p[:2])
	p = p[2:]
	g.CharsetID = p[0]
	p = p[1:]
	g.ServerStatus = bytesutil.Uint16LE(p[:2])
	p = p[2+13:] // status, reserved
	salt2 := append([]byte(nil), p[:12]...)
	g.Salt = append(salt1, salt2...)
	return g, nil
}

func decodeOk(p []byte) (*OkResponse, error) {
	ok := &OkResponse{}
	affected, rest, err := readLengthEncodedInt(p)
	if err != nil {
		return nil, err
	}
	ok.AffectedRows = affected
	p = rest
	if affected > 0 {
		insertID, rest2, err := readLengthEncodedInt(p)
		if err != nil {
			return nil, err
		}
		ok.InsertID = insertID
		p = rest2
	}
	if len(p) < 4 {
		return nil, adbcj.NewProtocolError("mysql: truncated OK packet")
	}
	ok.ServerStatus = bytesutil.Uint16LE(p[:2])
	ok.WarningCount = bytesutil.Uint16LE(p[2:4])
	ok.Message = string(p[4:])
	return ok, nil
}

func decodeError(p []byte) (*ErrorResponse, error) {
	if len(p) < 2 {
		return nil, adbcj.NewProtocolError("mysql: truncated error packet")
	}
	e := &ErrorResponse{ErrorNumber: bytesutil.Uint16LE(p[:2])}
	p = p[2:]
	if len(p) > 0 && p[0] == '#' {
		if len(p) < 6 {
			return nil, adbcj.NewProtocolError("mysql: truncated SQL state")
		}
		e.SQLState = string(p[1:6])
		p = p[6:]
	}
	e.Message = string(p)
	return e, nil
}

func decodeField(p []byte) (*ResultSetFieldResponse, error) {
	var (
		table, origTable, name, origName string
		err                               error
	)
	_, p, err = readLengthEncodedString(p) // catalog
	if err != nil {
		return nil, err
	}
	_, p, err = readLengthEncodedString(p) // db
	if err != nil {
		return nil, err
	}
	table, p, err = readLengthEncodedString(p)
	if err != nil {
		return nil, err
	}
	origTable, p, err = readLengthEncodedString(p)
	if err != nil {
		return nil, err
	}
	_ = origTable
	name, p, err = readLengthEncodedString(p)
	if err != nil {
		return nil, err
	}
	origName, p, err = readLengthEncodedString(p)
	if err != nil {
		return nil, err
	}
	_ = origName

	if len(p) < 1 {
		return nil, adbcj.NewProtocolError("mysql: truncated field packet")
	}
	_, p, err = readLengthEncodedInt(p) // filler length (always 0x0c)
	if err != nil {
		return nil, err
	}
	if len(p) < 2+4+1+2+1+2 {
		return nil, adbcj.NewProtocolError("mysql: truncated field descriptor")
	}
	p = p[2:] // charset
	length := bytesutil.Uint32LE(p[:4])
	p = p[4:]
	typ := p[0]
	p = p[1:]
	flags := bytesutil.Uint16LE(p[:2])
	p = p[2:]
	decimals := p[0]

	return &ResultSetFieldResponse{
		Name:     name,
		Table:    table,
		Type:     typ,
		Length:   length,
		Decimals: decimals,
		Flags:    flags,
	}, nil
}

func decodeEof(p []byte, kind EofKind) (*EofResponse, error) {
	if len(p) < 4 {
		return &EofResponse{Kind: kind}, nil
	}
	return &EofResponse{
		Kind:         kind,
		WarningCount: bytesutil.Uint16LE(p[:2]),
		ServerStatus: bytesutil.Uint16LE(p[2:4]),
	}, nil
}

func decodeRow(p []byte, fields []ResultSetFieldResponse) (*ResultSetRowResponse, error) {
	values := make([]any, 0, len(fields))
	for _, f := range fields {
		if len(p) > 0 && p[0] == 0xfb {
			values = append(values, nil)
			p = p[1:]
			continue
		}
		raw, rest, err := readLengthEncodedString(p)
		if err != nil {
			return nil, err
		}
		p = rest
		v, err := decodeRowValue(f.Type, []byte(raw))
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &ResultSetRowResponse{Values: values}, nil
}

// maxLengthEncodedInt rejects an 8-byte length-encoded integer with its top
// bit set. getBinaryLengthEncoding (original_source) treats such a value as
// corrupt rather than a legitimate length, since no real result set or
// packet field is anywhere near 2^63 bytes; here it also guards every
// caller that uses the decoded value as a slice length.
const maxLengthEncodedInt = 1<<63 - 1

// readLengthEncodedInt decodes a MySQL length-encoded integer (spec §4.3).
func readLengthEncodedInt(p []byte) (uint64, []byte, error) {
	if len(p) == 0 {
		return 0, p, nil
	}
	switch {
	case p[0] <= 250:
		return uint64(p[0]), p[1:], nil
	case p[0] == 0xfb:
		return 0, p[1:], nil // NULL; caller checks 0xfb separately for values
	case p[0] == 0xfc:
		if len(p) < 3 {
			return 0, nil, adbcj.NewProtocolError("mysql: truncated 2-byte length-encoded integer")
		}
		return uint64(bytesutil.Uint16LE(p[1:3])), p[3:], nil
	case p[0] == 0xfd:
		if len(p) < 4 {
			return 0, nil, adbcj.NewProtocolError("mysql: truncated 3-byte length-encoded integer")
		}
		b := p[1:4]
		return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16, p[4:], nil
	case p[0] == 0xfe:
		if len(p) < 9 {
			return 0, nil, adbcj.NewProtocolError("mysql: truncated 8-byte length-encoded integer")
		}
		n := bytesutil.Uint64LE(p[1:9])
		if n > maxLengthEncodedInt {
			return 0, nil, adbcj.NewProtocolError("mysql: length-encoded integer %d has high bit set", n)
		}
		return n, p[9:], nil
	default:
		return uint64(p[0]), p[1:], nil
	}
}

// readLengthEncodedString decodes a length-encoded string: a
// length-encoded integer followed by that many bytes.
func readLengthEncodedString(p []byte) (string, []byte, error) {
	n, rest, err := readLengthEncodedInt(p)
	if err != nil {
		return "", nil, err
	}
	if n > uint64(len(rest)) {
		return "", nil, adbcj.NewProtocolError("mysql: length-encoded string longer than remaining packet")
	}
	return string(rest[:n]), rest[n:], nil
}

