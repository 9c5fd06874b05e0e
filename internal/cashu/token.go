package cashu

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrPayment is the single failure kind for bearer-token verification. Every
// rejection wraps it; the raw token never appears in an error.
var ErrPayment = errors.New("payment invalid or insufficient")

// tokenPrefix identifies a V3 cashu token.
const tokenPrefix = "cashuA"

// Proof is a single blinded ecash proof inside a token.
type Proof struct {
	Amount uint64 `json:"amount"`
	ID     string `json:"id"`
	Secret string `json:"secret"`
	C      string `json:"C"`
}

// Entry groups proofs issued by one mint.
type Entry struct {
	Mint   string  `json:"mint"`
	Proofs []Proof `json:"proofs"`
}

// Token is a decoded bearer token. Hash commits to the serialized form the
// client presented, for the spent-proof ledger.
type Token struct {
	Entries []Entry `json:"token"`
	Memo    string  `json:"memo,omitempty"`

	Hash string `json:"-"`
}

// Decode parses a "cashuA"-prefixed base64url token. Both padded and
// unpadded encodings are accepted, since wallets disagree.
func Decode(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, tokenPrefix) {
		return nil, fmt.Errorf("%w: not a cashu token", ErrPayment)
	}
	encoded := strings.TrimPrefix(raw, tokenPrefix)

	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: token is not valid base64", ErrPayment)
	}

	var tok Token
	if err := json.Unmarshal(decoded, &tok); err != nil {
		return nil, fmt.Errorf("%w: token payload is not valid JSON", ErrPayment)
	}
	if len(tok.Entries) == 0 {
		return nil, fmt.Errorf("%w: token carries no proofs", ErrPayment)
	}
	for _, entry := range tok.Entries {
		if entry.Mint == "" {
			return nil, fmt.Errorf("%w: token entry is missing its mint", ErrPayment)
		}
		if len(entry.Proofs) == 0 {
			return nil, fmt.Errorf("%w: token entry carries no proofs", ErrPayment)
		}
		for _, p := range entry.Proofs {
			if p.Secret == "" || p.C == "" {
				return nil, fmt.Errorf("%w: malformed proof", ErrPayment)
			}
		}
	}

	sum := sha256.Sum256([]byte(raw))
	tok.Hash = hex.EncodeToString(sum[:])
	return &tok, nil
}

// TotalAmount sums every proof across all mint entries.
func (t *Token) TotalAmount() uint64 {
	var total uint64
	for _, entry := range t.Entries {
		for _, p := range entry.Proofs {
			total += p.Amount
		}
	}
	return total
}

// Secrets returns every proof secret in the token, in order.
func (t *Token) Secrets() []string {
	var secrets []string
	for _, entry := range t.Entries {
		for _, p := range entry.Proofs {
			secrets = append(secrets, p.Secret)
		}
	}
	return secrets
}
