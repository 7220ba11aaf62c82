package protocol

import (
	"io"
)

// Message is a decoded frame: header plus raw payload bytes. Callers
// further decode Payload according to Header.Kind using the Decode*
// helpers in payloads.go.
type Message struct {
	Header  Header
	Payload []byte
}

// Encode serializes a message with kind, flags, correlationID, and the
// given payload bytes. The timestamp is informational and supplied by the
// caller so the codec stays free of wall-clock reads (Go's time.Now is
// fine in production code; tests pass a fixed value for determinism).
func Encode(kind Kind, flags Flags, correlationID uint32, timestampMillis uint64, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, newFramingError(ErrTooLarge, "payload length exceeds 16 MiB")
	}
	h := Header{
		Kind:          kind,
		Flags:         flags | FlagProtocolV1,
		PayloadLength: uint32(len(payload)),
		CorrelationID: correlationID,
		Timestamp:     timestampMillis,
	}
	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, h.Encode()...)
	out = append(out, payload...)
	return out, nil
}

// Write encodes and writes a full message to w in one call.
func Write(w io.Writer, kind Kind, flags Flags, correlationID uint32, timestampMillis uint64, payload []byte) error {
	buf, err := Encode(kind, flags, correlationID, timestampMillis, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadMessage reads exactly one framed message from r: 32 bytes of header,
// validated, followed by exactly PayloadLength bytes. Any short read, bad
// magic, bad checksum, oversize payload, or unknown kind yields a
// *FramingError and no payload bytes beyond the header are consumed for a
// header-level failure (the payload is only read once the header is
// valid).
func ReadMessage(r io.Reader) (Message, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Message{}, newFramingError(ErrShortRead, "connection closed before header completed")
		}
		return Message{}, err
	}
	h, err := decodeHeader(headerBuf)
	if err != nil {
		return Message{}, err
	}
	payload := make([]byte, h.PayloadLength)
	if h.PayloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Message{}, newFramingError(ErrShortRead, "connection closed before payload completed")
		}
	}
	return Message{Header: h, Payload: payload}, nil
}

// Decode parses a complete in-memory frame (header+payload), as opposed
// to ReadMessage's streaming variant.
func Decode(buf []byte) (Message, error) {
	if len(buf) < HeaderSize {
		return Message{}, newFramingError(ErrShortRead, "buffer shorter than header")
	}
	h, err := decodeHeader(buf[:HeaderSize])
	if err != nil {
		return Message{}, err
	}
	rest := buf[HeaderSize:]
	if uint32(len(rest)) < h.PayloadLength {
		return Message{}, newFramingError(ErrShortRead, "buffer shorter than declared payload")
	}
	return Message{Header: h, Payload: rest[:h.PayloadLength]}, nil
}
