package mvcc

import (
	"encoding/binary"
	"fmt"
)

// Write is a representation of an applied write to backing storage.
// A serialized version is stored in the "write" CF of our engine, keyed by the user key and the execution sequence
// that applied it. That allows MvccTxn to find the value of a key as of any sequence.
type Write struct {
	Seq  uint64
	Kind WriteKind
}

func (wr *Write) ToBytes() []byte {
	buf := append([]byte{byte(wr.Kind)}, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.BigEndian.PutUint64(buf[1:], wr.Seq)
	return buf
}

func ParseWrite(value []byte) (*Write, error) {
	if value == nil {
		return nil, nil
	}
	if len(value) != 9 {
		return nil, fmt.Errorf("mvcc/write/ParseWrite: value is incorrect length, expected 9, found %d", len(value))
	}
	kind := value[0]
	seq := binary.BigEndian.Uint64(value[1:])

	return &Write{seq, WriteKind(kind)}, nil
}

type WriteKind int

const (
	WriteKindPut    WriteKind = 1
	WriteKindDelete WriteKind = 2
)

func (wk WriteKind) String() string {
	switch wk {
	case WriteKindPut:
		return "put"
	case WriteKindDelete:
		return "delete"
	}
	return fmt.Sprintf("WriteKind(%d)", int(wk))
}
