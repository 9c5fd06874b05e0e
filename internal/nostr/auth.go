package nostr

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// ErrAuthentication is the single failure kind for request authentication.
// Every rejection wraps it with a human-readable reason; crypto library
// errors are never passed through.
var ErrAuthentication = errors.New("authentication failed")

// ReplayWindow bounds |now - created_at| for an authorization event.
const ReplayWindow = 60 * time.Second

const headerScheme = "Nostr"

// Authenticate verifies a NIP-98 Authorization header against the request's
// method, exact URL, and body, and returns the proven signer pubkey (hex).
func Authenticate(authHeader, method, rawURL string, body []byte) (string, error) {
	return authenticateAt(authHeader, method, rawURL, body, time.Now())
}

func authenticateAt(authHeader, method, rawURL string, body []byte, now time.Time) (string, error) {
	scheme, payload, found := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !found || scheme != headerScheme {
		return "", fmt.Errorf("%w: missing or malformed authorization header", ErrAuthentication)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", fmt.Errorf("%w: authorization payload is not valid base64", ErrAuthentication)
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return "", fmt.Errorf("%w: authorization payload is not a valid event", ErrAuthentication)
	}

	if ev.Kind != KindHTTPAuth {
		return "", fmt.Errorf("%w: wrong event kind %d", ErrAuthentication, ev.Kind)
	}
	if ev.Content != "" {
		return "", fmt.Errorf("%w: event content must be empty", ErrAuthentication)
	}
	if ev.ComputeID() != ev.ID {
		return "", fmt.Errorf("%w: event id does not match contents", ErrAuthentication)
	}
	if !verifySignature(&ev) {
		return "", fmt.Errorf("%w: signature invalid", ErrAuthentication)
	}

	age := now.Unix() - ev.CreatedAt
	if age < 0 {
		age = -age
	}
	if age > int64(ReplayWindow/time.Second) {
		return "", fmt.Errorf("%w: event timestamp outside the replay window", ErrAuthentication)
	}

	if m, ok := ev.Tag("method"); !ok || m != method {
		return "", fmt.Errorf("%w: method tag does not match request", ErrAuthentication)
	}
	if u, ok := ev.Tag("u"); !ok || u != rawURL {
		return "", fmt.Errorf("%w: u tag does not match request URL", ErrAuthentication)
	}

	// The payload tag is optional; when present it must commit to the body.
	if want, ok := ev.Tag("payload"); ok {
		sum := sha256.Sum256(body)
		if want != hex.EncodeToString(sum[:]) {
			return "", fmt.Errorf("%w: payload tag does not match request body", ErrAuthentication)
		}
	}

	return ev.PubKey, nil
}

// verifySignature checks the schnorr signature over the event id. Any parse
// or verification failure collapses to false so callers report one uniform
// rejection.
func verifySignature(ev *Event) bool {
	pkBytes, err := hex.DecodeString(ev.PubKey)
	if err != nil || len(pkBytes) != 32 {
		return false
	}
	pub, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	idBytes, err := hex.DecodeString(ev.ID)
	if err != nil || len(idBytes) != sha256.Size {
		return false
	}
	return sig.Verify(idBytes, pub)
}
