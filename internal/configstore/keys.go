package configstore

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// GroupPrefix marks group identifiers. Configuration keys are purely
// alphabetic, so an identifier starting with it is never a configuration key.
const GroupPrefix = "1"

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// maxByte is the largest multiple of len(alphabet) that fits in a byte;
// random bytes at or above it are discarded to keep letters uniform.
const maxByte = 256 - 256%len(alphabet)

var blockedSubstrings = []string{
	"arse", "ass", "bitch", "bum", "cock", "crap", "cunt", "damn", "dick",
	"fag", "fuck", "kkk", "nazi", "nig", "piss", "poo", "porn", "rape",
	"sex", "shit", "slut", "tit", "twat", "wank", "whore",
}

// randomKey returns n uniformly random lowercase letters.
func randomKey(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// blocked reports whether key contains an offensive substring.
func blocked(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range blockedSubstrings {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// IsGroupID reports whether id names a configuration group.
func IsGroupID(id string) bool {
	return strings.HasPrefix(id, GroupPrefix)
}
