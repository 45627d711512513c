package models

import (
	"strconv"
)

// SerializableInt is an int that round-trips through the text form used when
// persisting structs as hashes in the DB.
type SerializableInt int

func (s SerializableInt) MarshalText() (data []byte, err error) {
	return []byte(strconv.FormatInt(int64(s), 10)), nil
}

func (s *SerializableInt) UnmarshalText(data []byte) error {
	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*s = SerializableInt(val)
	return nil
}
