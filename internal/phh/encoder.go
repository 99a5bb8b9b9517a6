package phh

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
)

// Encode writes hand to w as PHH.
func Encode(w io.Writer, hand *HandHistory) error {
	if hand == nil {
		return errors.New("phh: hand history is nil")
	}
	enc := toml.NewEncoder(w)
	enc.Indent = "\t"
	return enc.Encode(hand)
}

// EncodeToBytes encodes hand and returns the document.
func EncodeToBytes(hand *HandHistory) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, hand); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads one PHH document from r.
func Decode(r io.Reader) (*HandHistory, error) {
	var hand HandHistory
	if _, err := toml.NewDecoder(r).Decode(&hand); err != nil {
		return nil, fmt.Errorf("phh: decode: %w", err)
	}
	if hand.Variant == "" {
		return nil, errors.New("phh: missing variant")
	}
	if hand.Year != 0 {
		loc, err := time.LoadLocation(hand.TimeZone)
		if err != nil {
			loc = time.UTC
		}
		clock, err := time.ParseInLocation(time.TimeOnly, hand.Time, loc)
		if err == nil {
			hand.Timestamp = time.Date(hand.Year, time.Month(hand.Month), hand.Day,
				clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
		}
	}
	return &hand, nil
}

// DecodeBytes decodes a PHH document held in memory.
func DecodeBytes(data []byte) (*HandHistory, error) {
	return Decode(bytes.NewReader(data))
}
