package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

var (
	ErrShort    = errors.New("record: block too short")
	ErrBlank    = errors.New("record: block is blank")
	ErrChecksum = errors.New("record: checksum mismatch")
)

// layout is the on-flash image. Field order and widths are fixed; strings
// are NUL padded to max+1 bytes.
type layout struct {
	NetworkSSID       [MaxSSID + 1]byte
	NetworkPassword   [MaxPassword + 1]byte
	SchemaVersion     float32
	Hostname          [MaxHostname + 1]byte
	APIKey            [MaxAPIKey + 1]byte
	APIKeyLocked      uint8
	Language          uint8
	WebUser           [MaxWebUser + 1]byte
	WebPassword       [MaxWebPassword + 1]byte
	MessageID         uint8
	VoltagePin        int32
	CalibrationFactor float32
}

const digestSize = 32

var fieldsSize = binary.Size(layout{})

// EncodedSize is the number of meaningful bytes at the start of the block:
// the packed fields followed by their BLAKE3 digest.
var EncodedSize = fieldsSize + digestSize

// Encode packs r. Strings longer than their bound are truncated.
func Encode(r Record) []byte {
	var l layout
	putString(l.NetworkSSID[:], r.NetworkSSID)
	putString(l.NetworkPassword[:], r.NetworkPassword)
	l.SchemaVersion = r.SchemaVersion
	putString(l.Hostname[:], r.Hostname)
	putString(l.APIKey[:], r.APIKey)
	if r.APIKeyLocked {
		l.APIKeyLocked = 1
	}
	l.Language = uint8(r.Language)
	putString(l.WebUser[:], r.WebUser)
	putString(l.WebPassword[:], r.WebPassword)
	l.MessageID = r.MessageID
	l.VoltagePin = r.VoltagePin
	l.CalibrationFactor = r.CalibrationFactor

	buf := bytes.NewBuffer(make([]byte, 0, EncodedSize))
	// bytes.Buffer writes cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, &l)
	sum := blake3.Sum256(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

// Decode unpacks the first EncodedSize bytes of b.
func Decode(b []byte) (Record, error) {
	if len(b) < EncodedSize {
		return Record{}, ErrShort
	}
	b = b[:EncodedSize]
	if isZero(b) {
		return Record{}, ErrBlank
	}
	fields, digest := b[:fieldsSize], b[fieldsSize:]
	sum := blake3.Sum256(fields)
	if !bytes.Equal(sum[:], digest) {
		return Record{}, ErrChecksum
	}
	var l layout
	if err := binary.Read(bytes.NewReader(fields), binary.LittleEndian, &l); err != nil {
		return Record{}, fmt.Errorf("record: decode: %w", err)
	}
	return Record{
		NetworkSSID:       getString(l.NetworkSSID[:]),
		NetworkPassword:   getString(l.NetworkPassword[:]),
		SchemaVersion:     l.SchemaVersion,
		Hostname:          getString(l.Hostname[:]),
		APIKey:            getString(l.APIKey[:]),
		APIKeyLocked:      l.APIKeyLocked != 0,
		Language:          Language(l.Language),
		WebUser:           getString(l.WebUser[:]),
		WebPassword:       getString(l.WebPassword[:]),
		MessageID:         l.MessageID,
		VoltagePin:        l.VoltagePin,
		CalibrationFactor: l.CalibrationFactor,
	}, nil
}

// putString copies s leaving at least one trailing NUL.
func putString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func getString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
