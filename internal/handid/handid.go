// Package handid generates hand identifiers: UUIDv7 values written as 26
// characters of Crockford base32, so that identifiers sort by creation time.
package handid

import (
	"encoding/base32"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// New returns a fresh identifier.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return encoding.EncodeToString(id[:])
}

func decode(id string) (uuid.UUID, error) {
	var u uuid.UUID
	if len(id) != 26 {
		return u, fmt.Errorf("hand ID must be exactly 26 characters, got %d", len(id))
	}
	raw, err := encoding.DecodeString(id)
	if err != nil {
		return u, fmt.Errorf("hand ID %q: %w", id, err)
	}
	copy(u[:], raw)
	return u, nil
}

// Validate checks that id was produced by New.
func Validate(id string) error {
	u, err := decode(id)
	if err != nil {
		return err
	}
	if u.Version() != 7 {
		return fmt.Errorf("hand ID %q is not time ordered", id)
	}
	return nil
}

// Time returns the creation time embedded in id, to the millisecond.
func Time(id string) (time.Time, error) {
	if err := Validate(id); err != nil {
		return time.Time{}, err
	}
	u, _ := decode(id)
	var ms int64
	for _, b := range u[:6] {
		ms = ms<<8 | int64(b)
	}
	return time.UnixMilli(ms), nil
}
