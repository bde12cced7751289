package postgres

import (
	"github.com/lithdew/bytesutil"

	"github.com/adbcj-go/adbcj"
)

// Decoder implements transport.Decoder for the PostgreSQL frontend/backend
// protocol v3.0: every backend message is a 1-byte type tag followed by a
// 4-byte big-endian length *including* the length field itself (spec §4.4
// "Framing"). Grounded on PgBackendMessageDecoder.decode (original_source),
// translated from MINA's cumulative decoder into a buffer-rewind loop.
type Decoder struct {
	buf []byte
}

// NewDecoder returns a decoder ready to consume backend messages.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode implements transport.Decoder. A message needs at least 5 bytes
// (tag + length) to peek its total size, then 1+`length` bytes in total
// (the length field is inclusive of itself but not the tag byte) before it
// can be decoded; otherwise Decode returns without consuming, leaving the
// partial message buffered for the next call.
func (d *Decoder) Decode(data []byte, emit func(msg any)) error {
	d.buf = append(d.buf, data...)
	for {
		if len(d.buf) < 5 {
			return nil
		}
		tag := d.buf[0]
		length := int(bytesutil.Uint32BE(d.buf[1:5]))
		total := 1 + length
		if len(d.buf) < total {
			return nil
		}
		payload := d.buf[5:total]
		d.buf = d.buf[total:]

		msg, err := d.decodeOne(tag, payload)
		if err != nil {
			return err
		}
		if msg != nil {
			emit(msg)
		}
	}
}

func (d *Decoder) decodeOne(tag byte, p []byte) (any, error) {
	switch tag {
	case 'R':
		return decodeAuthentication(p)
	case 'K':
		return decodeKey(p)
	case 'S':
		return decodeParameterStatus(p)
	case 'T':
		return decodeRowDescription(p)
	case 'D':
		return decodeDataRow(p)
	case 'C':
		return decodeCommandComplete(p)
	case 'E':
		return decodeErrorResponse(p)
	case 'Z':
		return decodeReadyForQuery(p)
	case '1':
		return &ParseComplete{}, nil
	case '2':
		return &BindComplete{}, nil
	case 'n':
		return &NoData{}, nil
	case 'I':
		return &EmptyQueryResponse{}, nil
	case 'N':
		// NoticeResponse: same wire shape as ErrorResponse but advisory;
		// dropped rather than surfaced (spec treats errors, not notices).
		return nil, nil
	default:
		return nil, adbcj.NewProtocolError("postgres: unknown message tag %q", tag)
	}
}

func cstring(p []byte) (string, []byte) {
	for i, b := range p {
		if b == 0 {
			return string(p[:i]), p[i+1:]
		}
	}
	return string(p), nil
}

func decodeAuthentication(p []byte) (*Authentication, error) {
	if len(p) < 4 {
		return nil, adbcj.NewProtocolError("postgres: truncated authentication message")
	}
	code := bytesutil.Uint32BE(p[:4])
	switch code {
	case 0:
		return &Authentication{Kind: AuthOk}, nil
	case 5:
		if len(p) < 8 {
			return nil, adbcj.NewProtocolError("postgres: truncated MD5 salt")
		}
		salt := append([]byte(nil), p[4:8]...)
		return &Authentication{Kind: AuthMD5Password, Salt: salt}, nil
	default:
		return &Authentication{Kind: AuthUnsupported}, nil
	}
}

func decodeKey(p []byte) (*Key, error) {
	if len(p) < 8 {
		return nil, adbcj.NewProtocolError("postgres: truncated BackendKeyData")
	}
	return &Key{
		ProcessID: bytesutil.Uint32BE(p[:4]),
		SecretKey: bytesutil.Uint32BE(p[4:8]),
	}, nil
}

func decodeParameterStatus(p []byte) (*ParameterStatus, error) {
	name, rest := cstring(p)
	value, _ := cstring(rest)
	return &ParameterStatus{Name: name, Value: value}, nil
}

func decodeRowDescription(p []byte) (*RowDescription, error) {
	if len(p) < 2 {
		return nil, adbcj.NewProtocolError("postgres: truncated RowDescription")
	}
	n := int(bytesutil.Uint16BE(p[:2]))
	p = p[2:]
	fields := make([]FieldDescription, 0, n)
	for i := 0; i < n; i++ {
		name, rest := cstring(p)
		p = rest
		if len(p) < 18 {
			return nil, adbcj.NewProtocolError("postgres: truncated field descriptor")
		}
		f := FieldDescription{
			Name:         name,
			TableOID:     bytesutil.Uint32BE(p[:4]),
			ColumnNumber: int16(bytesutil.Uint16BE(p[4:6])),
			TypeOID:      bytesutil.Uint32BE(p[6:10]),
			TypeSize:     int16(bytesutil.Uint16BE(p[10:12])),
			TypeModifier: int32(bytesutil.Uint32BE(p[12:16])),
			FormatCode:   int16(bytesutil.Uint16BE(p[16:18])),
		}
		p = p[18:]
		fields = append(fields, f)
	}
	return &RowDescription{Fields: fields}, nil
}

func decodeDataRow(p []byte) (*DataRow, error) {
	if len(p) < 2 {
		return nil, adbcj.NewProtocolError("postgres: truncated DataRow")
	}
	n := int(bytesutil.Uint16BE(p[:2]))
	p = p[2:]
	values := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if len(p) < 4 {
			return nil, adbcj.NewProtocolError("postgres: truncated DataRow column")
		}
		length := int32(bytesutil.Uint32BE(p[:4]))
		p = p[4:]
		if length < 0 {
			values = append(values, nil)
			continue
		}
		if len(p) < int(length) {
			return nil, adbcj.NewProtocolError("postgres: truncated DataRow column value")
		}
		values = append(values, append([]byte(nil), p[:length]...))
		p = p[length:]
	}
	return &DataRow{Values: values}, nil
}

func decodeCommandComplete(p []byte) (*CommandComplete, error) {
	tag, _ := cstring(p)
	cmd, rows := parseCommandTag(tag)
	return &CommandComplete{Command: cmd, Rows: rows}, nil
}

func decodeErrorResponse(p []byte) (*ErrorResponse, error) {
	e := &ErrorResponse{}
	for len(p) > 0 && p[0] != 0 {
		field := p[0]
		value, rest := cstring(p[1:])
		p = rest
		switch field {
		case 'S':
			e.Severity = value
		case 'C':
			e.Code = value
		case 'M':
			e.Message = value
		}
	}
	return e, nil
}

func decodeReadyForQuery(p []byte) (*ReadyForQuery, error) {
	if len(p) < 1 {
		return nil, adbcj.NewProtocolError("postgres: truncated ReadyForQuery")
	}
	return &ReadyForQuery{Status: TxStatus(p[0])}, nil
}
