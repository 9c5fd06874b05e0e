package names

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
)

// Validation failures are a closed set so callers and tests can match on the
// value instead of message text.
var (
	ErrEmpty         = errors.New("name is empty")
	ErrTooLong       = errors.New("name exceeds 63 characters")
	ErrUnderscore    = errors.New("name must not contain underscores")
	ErrDot           = errors.New("name must not contain dots")
	ErrSpace         = errors.New("name must not contain spaces")
	ErrEmoji         = errors.New("name must not contain emoji")
	ErrCombiningMark = errors.New("name must not consist of combining marks")
	ErrHyphenEdge    = errors.New("name must not start or end with a hyphen")
	ErrHyphenACE     = errors.New("name must not contain hyphens at positions 3-4")
	ErrBadCharacter  = errors.New("name contains an invalid character")
	ErrUnencodable   = errors.New("name cannot be encoded as a DNS label")
)

// maxLabel is the DNS label ceiling, applied both to the raw input (in code
// points) and to the encoded canonical form (in bytes).
const maxLabel = 63

// Canonicalize turns arbitrary input into a {display, canonical} pair.
// Display preserves the caller's casing and script; canonical is the
// lowercase ACE-encoded label used as the uniqueness key. Canonicalizing an
// already-canonical string returns it unchanged.
func Canonicalize(raw string) (display, canonical string, err error) {
	display = strings.TrimSpace(raw)
	if display == "" {
		return "", "", ErrEmpty
	}

	runes := []rune(display)
	if len(runes) > maxLabel {
		return "", "", ErrTooLong
	}

	if err := screenRunes(runes); err != nil {
		return "", "", err
	}

	if runes[0] == '-' || runes[len(runes)-1] == '-' {
		return "", "", ErrHyphenEdge
	}

	ascii := true
	for _, r := range runes {
		if r > unicode.MaxASCII {
			ascii = false
			break
		}
	}

	if ascii {
		canonical, err = canonicalASCII(display, runes)
	} else {
		canonical, err = canonicalACE(display)
	}
	if err != nil {
		return "", "", err
	}
	if len(canonical) > maxLabel {
		return "", "", ErrTooLong
	}
	return display, canonical, nil
}

// screenRunes rejects character classes with their own error value so the
// caller sees which rule was broken, not a generic failure.
func screenRunes(runes []rune) error {
	marksOnly := true
	for _, r := range runes {
		switch {
		case r == '_':
			return ErrUnderscore
		case r == '.':
			return ErrDot
		case unicode.IsSpace(r):
			return ErrSpace
		case isEmoji(r):
			return ErrEmoji
		}
		if !unicode.In(r, unicode.Mn, unicode.Me, unicode.Mc) {
			marksOnly = false
		}
	}
	if marksOnly {
		return ErrCombiningMark
	}
	return nil
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // pictographs, emoticons, symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r == 0x200D || r == 0xFE0F: // ZWJ, variation selector
		return true
	}
	return false
}

func canonicalASCII(display string, runes []rune) (string, error) {
	for _, r := range runes {
		if !isLabelRune(r) {
			return "", ErrBadCharacter
		}
	}
	lower := strings.ToLower(display)
	if len(runes) >= 4 && runes[2] == '-' && runes[3] == '-' {
		// Positions 3-4 are reserved for the ACE prefix. The only string
		// allowed to carry it is a genuine ACE form, which must survive an
		// idna round trip unchanged (keeps Canonicalize idempotent for
		// previously encoded names).
		if !strings.HasPrefix(lower, "xn--") {
			return "", ErrHyphenACE
		}
		encoded, err := idna.Lookup.ToASCII(lower)
		if err != nil || encoded != lower {
			return "", ErrUnencodable
		}
	}
	return lower, nil
}

func canonicalACE(display string) (string, error) {
	encoded, err := idna.Lookup.ToASCII(strings.ToLower(display))
	if err != nil {
		return "", ErrUnencodable
	}
	return encoded, nil
}

func isLabelRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-':
		return true
	}
	return false
}
