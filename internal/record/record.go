// Package record defines the device configuration record: the single
// persisted entity shared by the control plane.
package record

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// BuildVersion is the schema version compiled into this build. A stored
// record whose integer part differs is discarded as a whole.
const BuildVersion float32 = 1.3

// Bounded string limits (bytes, excluding the terminating NUL).
const (
	MaxSSID        = 32
	MaxPassword    = 64
	MaxHostname    = 32
	MaxAPIKey      = 32
	MaxWebUser     = 32
	MaxWebPassword = 32
)

// Factory defaults.
const (
	DefaultHostname    = "epaper"
	DefaultAPIKey      = "epaper-default-key"
	DefaultWebUser     = "admin"
	DefaultWebPassword = "admin"
)

type Language uint8

const (
	LanguageEN Language = 0
	LanguageNL Language = 1
)

func (l Language) String() string {
	if l == LanguageNL {
		return "NL"
	}
	return "EN"
}

type Record struct {
	NetworkSSID       string
	NetworkPassword   string
	SchemaVersion     float32
	Hostname          string
	APIKey            string
	APIKeyLocked      bool
	Language          Language
	WebUser           string
	WebPassword       string
	MessageID         uint8
	VoltagePin        int32
	CalibrationFactor float32
}

func Defaults() Record {
	return Record{
		SchemaVersion:     BuildVersion,
		Hostname:          DefaultHostname,
		APIKey:            DefaultAPIKey,
		Language:          LanguageEN,
		WebUser:           DefaultWebUser,
		WebPassword:       DefaultWebPassword,
		CalibrationFactor: 1.0,
	}
}

// Unconfigured reports whether station credentials are missing.
func (r Record) Unconfigured() bool {
	return r.NetworkSSID == "" || r.NetworkPassword == ""
}

// SameMajor compares the integer parts of two schema versions.
func SameMajor(a, b float32) bool {
	return math.Trunc(float64(a)) == math.Trunc(float64(b))
}

// Clip shortens s to what the codec keeps: at most max bytes, ending
// before the first NUL.
func Clip(s string, max int) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	if len(s) > max {
		return s[:max]
	}
	return s
}

// ErrBounds marks a string the record cannot hold as given.
var ErrBounds = errors.New("value does not fit the record")

// CheckString reports whether s survives a store round trip unchanged:
// at most max bytes and no NUL.
func CheckString(field, s string, max int) error {
	if len(s) > max {
		return fmt.Errorf("%w: %s is %d bytes, at most %d allowed", ErrBounds, field, len(s), max)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%w: %s contains a NUL byte", ErrBounds, field)
	}
	return nil
}
