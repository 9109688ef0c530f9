package txn

import (
	"strconv"

	"github.com/pingcap/errors"
)

// EncodeInt renders v the way the add piece stores counters.
func EncodeInt(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}

// DecodeInt parses a counter; an absent value counts as zero.
func DecodeInt(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	return v, errors.Trace(err)
}
