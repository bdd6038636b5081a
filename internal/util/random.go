// Package util provides small helpers shared across Cockpit components.
package util

import (
	"math/rand/v2"
	"strings"
)

// RunIDHexLength is the number of hex characters in a generated run ID.
const RunIDHexLength = 16

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Not suitable for secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}
	return builder.String()
}

// GenerateRunID generates a timer run ID with the "run_" prefix.
func GenerateRunID() string {
	return GenerateRandomID("run_", RunIDHexLength)
}
