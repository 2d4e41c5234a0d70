package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseUserID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
func FuzzParseUserID(f *testing.F) {
	f.Add("")
	f.Add("u1")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("'; DROP TABLE users;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("u1\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUserID(input)
		if err == nil {
			roundTrip, err2 := ParseUserID(id.String())
			if err2 != nil {
				t.Errorf("Valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("Round-trip changed ID value")
			}
			if len(input) > MaxUserIDLength {
				t.Error("Oversized input was accepted")
			}
		}

		if !utf8.ValidString(input) && err == nil {
			t.Error("Non-UTF8 input was accepted")
		}
	})
}

// FuzzParseTemplateID ensures template id parsing never panics and never
// accepts the nil UUID.
func FuzzParseTemplateID(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseTemplateID(input)
		if err == nil && id.IsNil() {
			t.Error("nil template id was accepted")
		}
	})
}
