package record

import (
	"encoding/binary"
	"fmt"
)

// Position locates a single record on disk: which data file it lives in,
// the byte offset it starts at, and its total encoded size. This is the
// value every index variant stores per key, and the value the hint file
// persists for each key a merge kept.
type Position struct {
	FileID uint32
	Offset int64
	Size   uint32
}

// EncodePosition serializes p as three consecutive unsigned varints:
// file_id, offset, size. This is the exact layout the hint file uses to
// record where each live key's value lives, so that loading the hint file
// back in is just decoding a position next to its key.
func EncodePosition(p Position) []byte {
	buf := make([]byte, 3*binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, uint64(p.FileID))
	n += binary.PutUvarint(buf[n:], uint64(p.Offset))
	n += binary.PutUvarint(buf[n:], uint64(p.Size))
	return buf[:n]
}

// DecodePosition parses a Position out of buf, as produced by
// EncodePosition, returning the number of bytes consumed.
func DecodePosition(buf []byte) (Position, int, error) {
	fileID, n1 := binary.Uvarint(buf)
	if n1 <= 0 {
		return Position{}, 0, fmt.Errorf("record: failed to decode position file_id")
	}
	offset, n2 := binary.Uvarint(buf[n1:])
	if n2 <= 0 {
		return Position{}, 0, fmt.Errorf("record: failed to decode position offset")
	}
	size, n3 := binary.Uvarint(buf[n1+n2:])
	if n3 <= 0 {
		return Position{}, 0, fmt.Errorf("record: failed to decode position size")
	}

	return Position{
		FileID: uint32(fileID),
		Offset: int64(offset),
		Size:   uint32(size),
	}, n1 + n2 + n3, nil
}

// NonTransactionSequence is the reserved sequence number used for writes
// made outside of any batch.
const NonTransactionSequence uint64 = 0

// TxnFinishedKey is the reserved user key written (tagged with the
// committing batch's sequence number) to mark that every record sharing
// that sequence number committed successfully.
var TxnFinishedKey = []byte("txn-fin")

// EncodeTxnKey prefixes userKey with seq as a varint, producing the key
// that is actually written to the log. Untagged (non-transactional)
// writes use seq == NonTransactionSequence, so every key in the log
// carries a sequence prefix uniformly.
func EncodeTxnKey(seq uint64, userKey []byte) []byte {
	buf := make([]byte, binary.MaxVarintLen64+len(userKey))
	n := binary.PutUvarint(buf, seq)
	n += copy(buf[n:], userKey)
	return buf[:n]
}

// DecodeTxnKey splits a logged key back into its sequence number and the
// original user key.
func DecodeTxnKey(buf []byte) (seq uint64, userKey []byte) {
	seq, n := binary.Uvarint(buf)
	return seq, buf[n:]
}
