// Package slotid validates the slot identifiers carried in MQTT topics.
package slotid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Prefix starts every slot id, as in "slot3"
const Prefix = "slot"

// ErrInvalid is returned for ids that cannot round-trip through a topic
var ErrInvalid = errors.New("invalid slot id")

// Valid reports whether id has the form slot{digits}
func Valid(id string) bool {
	digits, found := strings.CutPrefix(id, Prefix)
	if !found || digits == "" {
		return false
	}
	_, err := strconv.ParseUint(digits, 10, 64)
	return err == nil && !strings.HasPrefix(digits, "+")
}

// Normalize returns s as a slot id. A bare number such as "3" becomes
// "slot3"; anything else must already be valid.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if Valid(s) {
		return s, nil
	}
	if Valid(Prefix + s) {
		return Prefix + s, nil
	}
	return "", fmt.Errorf("%w: %q (want %s<digits>)", ErrInvalid, s, Prefix)
}
