// Package codec lays out versioned storage keys. A versioned key is the memcomparable form of the user key followed
// by the complement of the execution sequence that wrote it, so all versions of a key are adjacent and the newest
// version sorts first.
package codec

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

const (
	groupSize   = 8
	groupMarker = byte(0xFF)
	seqLen      = 8
)

var zeros [groupSize]byte

// EncodeKey returns the storage key of the version of key written by execution seq.
func EncodeKey(key []byte, seq uint64) []byte {
	buf := make([]byte, 0, (len(key)/groupSize+1)*(groupSize+1)+seqLen)
	buf = appendGroups(buf, key)
	var tail [seqLen]byte
	binary.BigEndian.PutUint64(tail[:], ^seq)
	return append(buf, tail[:]...)
}

// DecodeKey splits a versioned key into its user key and sequence.
func DecodeKey(b []byte) ([]byte, uint64, error) {
	rest, key, err := decodeGroups(b)
	if err != nil {
		return nil, 0, err
	}
	if len(rest) != seqLen {
		return nil, 0, errors.Errorf("versioned key %q has %d sequence bytes", b, len(rest))
	}
	return key, ^binary.BigEndian.Uint64(rest), nil
}

// UserKey returns the user key of a versioned key read back from storage. It panics on a malformed key.
func UserKey(b []byte) []byte {
	key, _, err := DecodeKey(b)
	if err != nil {
		panic(err)
	}
	return key
}

// Seq returns the sequence of a versioned key read back from storage. It panics on a malformed key.
func Seq(b []byte) uint64 {
	_, seq, err := DecodeKey(b)
	if err != nil {
		panic(err)
	}
	return seq
}

// appendGroups writes data as 8-byte groups, each followed by a marker. Full groups get 0xFF. The last group is
// zero padded and its marker is 0xFF minus the padding, so a prefix always sorts before its extensions:
//   []        -> [0 0 0 0 0 0 0 0 247]
//   [1 2 3]   -> [1 2 3 0 0 0 0 0 250]
//   [1 .. 8]  -> [1 .. 8 255 0 0 0 0 0 0 0 0 247]
func appendGroups(buf, data []byte) []byte {
	for len(data) >= groupSize {
		buf = append(buf, data[:groupSize]...)
		buf = append(buf, groupMarker)
		data = data[groupSize:]
	}
	pad := groupSize - len(data)
	buf = append(buf, data...)
	buf = append(buf, zeros[:pad]...)
	return append(buf, groupMarker-byte(pad))
}

// decodeGroups reverses appendGroups and returns the bytes left after the last group.
func decodeGroups(b []byte) ([]byte, []byte, error) {
	data := make([]byte, 0, len(b))
	for {
		if len(b) < groupSize+1 {
			return nil, nil, errors.New("versioned key truncated")
		}
		group, marker := b[:groupSize], b[groupSize]
		pad := int(groupMarker - marker)
		if pad > groupSize {
			return nil, nil, errors.Errorf("invalid group marker %#x", marker)
		}
		n := groupSize - pad
		for _, c := range group[n:] {
			if c != 0 {
				return nil, nil, errors.Errorf("invalid padding in group %q", group)
			}
		}
		data = append(data, group[:n]...)
		b = b[groupSize+1:]
		if pad > 0 {
			return b, data, nil
		}
	}
}
