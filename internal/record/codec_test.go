package record

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeKeepsFields(t *testing.T) {
	r := Defaults()
	r.NetworkSSID = "Home"
	r.NetworkPassword = "secret"
	r.APIKeyLocked = true
	r.Language = LanguageNL
	r.MessageID = 1
	r.VoltagePin = 17
	r.CalibrationFactor = 2.5

	got, err := Decode(Encode(r))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != r {
		t.Fatalf("mismatch:\n got %+v\nwant %+v", got, r)
	}
}

func TestEncodedSizeFitsReservedBlock(t *testing.T) {
	if EncodedSize > 512 {
		t.Fatalf("encoded record is %d bytes, larger than the 512 byte block", EncodedSize)
	}
	if len(Encode(Defaults())) != EncodedSize {
		t.Fatalf("encode length %d != %d", len(Encode(Defaults())), EncodedSize)
	}
}

func TestEncodeTruncatesOverlongStrings(t *testing.T) {
	r := Defaults()
	r.Hostname = strings.Repeat("h", MaxHostname+10)
	got, err := Decode(Encode(r))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Hostname) != MaxHostname {
		t.Fatalf("hostname length %d", len(got.Hostname))
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode(make([]byte, 10)); !errors.Is(err, ErrShort) {
		t.Fatalf("short: %v", err)
	}
	if _, err := Decode(make([]byte, 512)); !errors.Is(err, ErrBlank) {
		t.Fatalf("blank: %v", err)
	}
	b := Encode(Defaults())
	b[3] ^= 0xff
	if _, err := Decode(b); !errors.Is(err, ErrChecksum) {
		t.Fatalf("checksum: %v", err)
	}
}

func TestSameMajor(t *testing.T) {
	cases := []struct {
		a, b float32
		want bool
	}{
		{1.3, 1.0, true},
		{1.3, 1.9, true},
		{1.3, 2.0, false},
		{0, 1.3, false},
	}
	for _, c := range cases {
		if got := SameMajor(c.a, c.b); got != c.want {
			t.Fatalf("SameMajor(%v,%v)=%v", c.a, c.b, got)
		}
	}
}

func TestUnconfigured(t *testing.T) {
	r := Defaults()
	if !r.Unconfigured() {
		t.Fatal("defaults should be unconfigured")
	}
	r.NetworkSSID = "Home"
	if !r.Unconfigured() {
		t.Fatal("missing password should be unconfigured")
	}
	r.NetworkPassword = "x"
	if r.Unconfigured() {
		t.Fatal("expected configured")
	}
}

func TestCheckStringMatchesCodec(t *testing.T) {
	cases := []struct {
		name string
		in   string
		ok   bool
	}{
		{"ascii at bound", strings.Repeat("a", MaxWebPassword), true},
		{"ascii over bound", strings.Repeat("a", MaxWebPassword+1), false},
		{"multibyte under rune count but over bytes", strings.Repeat("é", 20), false},
		{"multibyte within bytes", strings.Repeat("é", 16), true},
		{"embedded nul", "a\x00b", false},
		{"empty", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckString("web_password", tc.in, MaxWebPassword)
			if (err == nil) != tc.ok {
				t.Fatalf("CheckString(%q) = %v", tc.in, err)
			}
			if err != nil && !errors.Is(err, ErrBounds) {
				t.Fatalf("want ErrBounds, got %v", err)
			}
			if tc.ok {
				r := Defaults()
				r.WebPassword = tc.in
				got, err := Decode(Encode(r))
				if err != nil || got.WebPassword != tc.in {
					t.Fatalf("accepted value changed in the block: %q -> %q (%v)", tc.in, got.WebPassword, err)
				}
			}
		})
	}
}

func TestClipSurvivesRoundTrip(t *testing.T) {
	for _, in := range []string{"a\x00b", strings.Repeat("é", 40), "Home"} {
		c := Clip(in, MaxSSID)
		r := Defaults()
		r.NetworkSSID = c
		got, err := Decode(Encode(r))
		if err != nil || got.NetworkSSID != c {
			t.Fatalf("Clip(%q) = %q, decoded %q (%v)", in, c, got.NetworkSSID, err)
		}
	}
}
