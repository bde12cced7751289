package transport

// Decoder is implemented once per protocol variant (spec §2 item 2). It
// accumulates inbound bytes across calls and emits fully-framed protocol
// messages as soon as enough bytes are available, rewinding (returning
// without consuming) when a frame is only partially buffered.
//
// Decode is called from Conn's read-loop goroutine with each chunk
// MessageReceived hands it; the decoder owns whatever internal buffering
// it needs to reassemble frames split across TCP reads.
type Decoder interface {
	// Decode appends data to the decoder's internal buffer and then
	// drains as many complete messages as are available, invoking emit
	// once per message in wire order. Decode returns an error only for a
	// malformed frame (ErrProtocol); a partial frame is not an error, it
	// is simply left buffered for the next call.
	Decode(data []byte, emit func(msg any)) error
}

// Encoder serializes typed outbound messages into wire bytes. The mysql and
// postgres packages do not implement it: each builds its frames with
// package-level encode functions.
type Encoder interface {
	// Encode appends msg's wire representation to buf.
	Encode(buf []byte, msg any) ([]byte, error)
}
