// Package record implements the on-disk log record format shared by every
// data file in an ember database, plus the companion position codec used
// by the hint file.
//
// Record layout (all lengths are binary.PutUvarint-encoded, never fixed
// width):
//
//	type(1) | varint(key_len) | varint(value_len) | key | value | crc32(4, BE)
//
// The checksum is written LAST rather than first. This is a deliberate
// deviation from the classic Bitcask paper, carried forward unchanged from
// the project this implementation descends from: computing the checksum
// requires the lengths to already be known, so placing it after the
// payload avoids a second pass over the header to patch in the checksum.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/crc32"
)

// Type identifies what a Record represents in the log.
type Type uint8

const (
	// Normal is an ordinary key/value write.
	Normal Type = iota
	// Deleted is a tombstone: value is always empty.
	Deleted
	// TxnFinished terminates a batch; value carries nothing meaningful,
	// key carries the reserved transaction-finished marker.
	TxnFinished
)

func (t Type) String() string {
	switch t {
	case Normal:
		return "normal"
	case Deleted:
		return "deleted"
	case TxnFinished:
		return "txn-finished"
	default:
		return "unknown"
	}
}

// ErrEndOfFile is returned by Decode when it reads a zeroed-out header at
// the current offset, signaling the logical end of a data file's written
// content. It is an internal sentinel: scan loops in internal/storage and
// internal/engine use it to stop reading a segment, and it must never
// propagate out of those loops to a caller.
var ErrEndOfFile = errors.New("record: end of file reached")

// ErrInvalidCRC is returned by Decode when the trailing checksum does not
// match the computed checksum of the bytes that precede it.
var ErrInvalidCRC = errors.New("record: crc mismatch, log record may be corrupted")

// crcSize is the width, in bytes, of the trailing checksum.
const crcSize = 4

// typeSize is the width, in bytes, of the leading record type byte.
const typeSize = 1

// Record is a single decoded log entry.
type Record struct {
	Type  Type
	Key   []byte
	Value []byte
}

// MaxHeaderSize is the largest a record header (type + two varint lengths)
// can be; callers use it to size the initial read when probing an unknown
// record at a given offset.
func MaxHeaderSize() int {
	return typeSize + 2*binary.MaxVarintLen64
}

// Encode serializes r into the on-disk record format, including the
// trailing CRC-32 (IEEE) checksum.
func Encode(r *Record) []byte {
	header := make([]byte, MaxHeaderSize())
	header[0] = byte(r.Type)
	n := typeSize
	n += binary.PutUvarint(header[n:], uint64(len(r.Key)))
	n += binary.PutUvarint(header[n:], uint64(len(r.Value)))

	buf := make([]byte, n+len(r.Key)+len(r.Value)+crcSize)
	copy(buf, header[:n])
	copy(buf[n:], r.Key)
	copy(buf[n+len(r.Key):], r.Value)

	sum := crc32.ChecksumIEEE(buf[:n+len(r.Key)+len(r.Value)])
	binary.BigEndian.PutUint32(buf[len(buf)-crcSize:], sum)
	return buf
}

// DecodeHeader parses the type and the two varint lengths from the front
// of buf, which must be at least MaxHeaderSize() bytes (or the full
// remaining file, whichever is smaller). It returns the key/value lengths
// and the number of header bytes consumed.
func DecodeHeader(buf []byte) (recordType Type, keyLen, valueLen uint64, headerLen int, err error) {
	if len(buf) < typeSize+1 {
		return 0, 0, 0, 0, fmt.Errorf("record: header buffer too short (%d bytes)", len(buf))
	}

	recordType = Type(buf[0])
	rest := buf[typeSize:]

	klen, kn := binary.Uvarint(rest)
	if kn <= 0 {
		return 0, 0, 0, 0, fmt.Errorf("record: failed to decode key length varint")
	}
	rest = rest[kn:]

	vlen, vn := binary.Uvarint(rest)
	if vn <= 0 {
		return 0, 0, 0, 0, fmt.Errorf("record: failed to decode value length varint")
	}

	headerLen = typeSize + kn + vn
	if recordType == Normal && klen == 0 && vlen == 0 {
		return 0, 0, 0, 0, ErrEndOfFile
	}

	return recordType, klen, vlen, headerLen, nil
}

// Decode parses a complete record (header + key + value + crc) out of buf
// and returns the record along with the total number of bytes it occupies
// on disk.
func Decode(buf []byte) (*Record, int64, error) {
	recordType, keyLen, valueLen, headerLen, err := DecodeHeader(buf)
	if err != nil {
		return nil, 0, err
	}

	total := headerLen + int(keyLen) + int(valueLen) + crcSize
	if len(buf) < total {
		return nil, 0, fmt.Errorf("record: buffer too short to contain full record (%d < %d)", len(buf), total)
	}

	key := buf[headerLen : headerLen+int(keyLen)]
	value := buf[headerLen+int(keyLen) : headerLen+int(keyLen)+int(valueLen)]
	wantCRC := binary.BigEndian.Uint32(buf[total-crcSize : total])
	gotCRC := crc32.ChecksumIEEE(buf[:total-crcSize])

	if wantCRC != gotCRC {
		return nil, 0, ErrInvalidCRC
	}

	return &Record{Type: recordType, Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)}, int64(total), nil
}

// Size returns the exact on-disk size, in bytes, that r would occupy once
// encoded, without actually encoding it.
func Size(r *Record) int {
	n := typeSize
	n += uvarintSize(uint64(len(r.Key)))
	n += uvarintSize(uint64(len(r.Value)))
	return n + len(r.Key) + len(r.Value) + crcSize
}

func uvarintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
