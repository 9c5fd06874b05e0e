package cashu

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"namify/internal/models"
)

// Verifier checks decoded tokens against the operator's mint allow-list and
// the spent-proof ledger. The allow-list is an explicit value, not package
// state, so tests and the reservation flow pass the configuration they mean.
type Verifier struct {
	trustedMints map[string]bool
}

func NewVerifier(mints []string) *Verifier {
	trusted := make(map[string]bool, len(mints))
	for _, m := range mints {
		trusted[normalizeMint(m)] = true
	}
	return &Verifier{trustedMints: trusted}
}

func normalizeMint(mint string) string {
	return strings.TrimRight(strings.TrimSpace(mint), "/")
}

// Verify validates the token for a reservation of canonical at the required
// price and records every proof secret in the ledger. It must run on the
// same transaction as the reservation write so a token can never pay for two
// different names.
//
// Order: mint allow-list, amount, double-spend. The ledger insert relies on
// the primary key on spent_proofs.secret, so two concurrent spends of the
// same secret serialize on the constraint rather than on a read.
func (v *Verifier) Verify(tx *gorm.DB, tok *Token, canonical string, required uint64) error {
	for _, entry := range tok.Entries {
		if !v.trustedMints[normalizeMint(entry.Mint)] {
			return fmt.Errorf("%w: mint %q is not accepted", ErrPayment, entry.Mint)
		}
	}

	if total := tok.TotalAmount(); total < required {
		return fmt.Errorf("%w: token amount %d below required %d", ErrPayment, total, required)
	}

	secrets := tok.Secrets()
	var spent int64
	if err := tx.Model(&models.SpentProof{}).Where("secret IN ?", secrets).Count(&spent).Error; err != nil {
		return fmt.Errorf("spent-proof lookup: %w", err)
	}
	if spent > 0 {
		return fmt.Errorf("%w: token has already been spent", ErrPayment)
	}

	for _, entry := range tok.Entries {
		for _, p := range entry.Proofs {
			record := models.SpentProof{
				Secret:    p.Secret,
				TokenHash: tok.Hash,
				Canonical: canonical,
				Amount:    p.Amount,
			}
			if err := tx.Create(&record).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: token has already been spent", ErrPayment)
				}
				return fmt.Errorf("spent-proof insert: %w", err)
			}
		}
	}
	return nil
}
