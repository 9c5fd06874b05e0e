package nostr

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// KindHTTPAuth is the NIP-98 event kind for HTTP authorization events.
const KindHTTPAuth = 27235

// Event is a nostr event as carried on the wire.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Serialize produces the NIP-01 canonical form
// [0,pubkey,created_at,kind,tags,content]. HTML escaping is disabled: URLs
// in tags carry '&' and the hash must match other implementations byte for
// byte.
func (e *Event) Serialize() []byte {
	arr := []any{0, e.PubKey, e.CreatedAt, e.Kind, e.Tags, e.Content}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(arr); err != nil {
		return nil
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// ComputeID returns the hex sha256 of the canonical serialization.
func (e *Event) ComputeID() string {
	sum := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(sum[:])
}

// Tag returns the value of the first tag with the given key, if any.
func (e *Event) Tag(key string) (string, bool) {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == key {
			return tag[1], true
		}
	}
	return "", false
}
