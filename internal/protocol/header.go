package protocol

import (
	"encoding/binary"
	"hash/crc32"
)

// Magic is the fixed 4-byte value ("CCEE" as a big-endian uint32) every
// frame must start with.
const Magic uint32 = 0x43434545

// MaxPayloadSize bounds the declared payload length; anything larger is a
// framing error before a single payload byte is read.
const MaxPayloadSize = 16 * 1024 * 1024

// HeaderSize is the fixed wire size of a Message header: magic(4) +
// kind(2) + flags(2) + payload length(4) + correlation id(4) +
// timestamp(8) + checksum(4) + reserved(4) = 32 bytes. The trailing
// reserved word is always zero on the wire; it exists only so the header
// lands on the spec's mandated 32-byte boundary (the checksummed fields
// alone sum to 24 bytes, matching the original C header before padding).
const HeaderSize = 32

const checksummedSize = 24 // magic..timestamp, exclusive of checksum/reserved

// Flag bits within the 16-bit flag word.
type Flags uint16

const (
	FlagNone Flags = 0
	// FlagProtocolV1 marks frames produced by protocol version 1. Future
	// incompatible wire changes can claim another bit here instead of
	// growing the fixed header.
	FlagProtocolV1 Flags = 1 << 0
)

// Header is the fixed 32-byte envelope preceding every payload.
type Header struct {
	Magic         uint32
	Kind          Kind
	Flags         Flags
	PayloadLength uint32
	CorrelationID uint32
	Timestamp     uint64
	Checksum      uint32
}

// Encode serializes h into a 32-byte big-endian buffer with the checksum
// recomputed over the preceding fields.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	binary.BigEndian.PutUint16(buf[4:6], uint16(h.Kind))
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Flags))
	binary.BigEndian.PutUint32(buf[8:12], h.PayloadLength)
	binary.BigEndian.PutUint32(buf[12:16], h.CorrelationID)
	binary.BigEndian.PutUint64(buf[16:24], h.Timestamp)
	checksum := crc32.ChecksumIEEE(buf[0:checksummedSize])
	binary.BigEndian.PutUint32(buf[24:28], checksum)
	// buf[28:32] stays zero (reserved).
	return buf
}

// decodeHeader parses exactly HeaderSize bytes. It validates magic,
// checksum, payload size bound, and that the kind is recognized.
func decodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, newFramingError(ErrShortRead, "header must be exactly 32 bytes")
	}
	magic := binary.BigEndian.Uint32(buf[0:4])
	if magic != Magic {
		return Header{}, newFramingError(ErrBadMagic, "bad magic value")
	}
	wantChecksum := crc32.ChecksumIEEE(buf[0:checksummedSize])
	gotChecksum := binary.BigEndian.Uint32(buf[24:28])
	if wantChecksum != gotChecksum {
		return Header{}, newFramingError(ErrBadChecksum, "header checksum mismatch")
	}
	h := Header{
		Magic:         magic,
		Kind:          Kind(binary.BigEndian.Uint16(buf[4:6])),
		Flags:         Flags(binary.BigEndian.Uint16(buf[6:8])),
		PayloadLength: binary.BigEndian.Uint32(buf[8:12]),
		CorrelationID: binary.BigEndian.Uint32(buf[12:16]),
		Timestamp:     binary.BigEndian.Uint64(buf[16:24]),
		Checksum:      gotChecksum,
	}
	if h.PayloadLength > MaxPayloadSize {
		return Header{}, newFramingError(ErrTooLarge, "payload length exceeds 16 MiB")
	}
	if !h.Kind.IsKnown() {
		return Header{}, newFramingError(ErrUnknownKind, "unrecognized message kind")
	}
	return h, nil
}
