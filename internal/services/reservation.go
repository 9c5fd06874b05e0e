package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"namify/internal/cashu"
	"namify/internal/models"
)

// Mailer delivers the confirmation link. Actual delivery is an external
// collaborator; the flow only depends on this interface.
type Mailer interface {
	SendConfirmation(email, displayName, confirmURL string) error
}

// LogMailer writes the confirmation link to the server log. It stands in
// until an SMTP relay is wired up in deployment.
type LogMailer struct{}

func (LogMailer) SendConfirmation(email, displayName, confirmURL string) error {
	log.Printf("confirmation for %q -> %s : %s", displayName, email, confirmURL)
	return nil
}

// Reservation runs the payment-gated public reservation flow: screen the
// name, take payment (invite code or cashu token), park the name, and mail a
// single-use confirmation link.
type Reservation struct {
	db        *gorm.DB
	lifecycle *Lifecycle
	prices    PriceTable
	verifier  *cashu.Verifier
	mailer    Mailer

	publicDomain string
	tokenTTL     time.Duration
}

func NewReservation(db *gorm.DB, lifecycle *Lifecycle, prices PriceTable, verifier *cashu.Verifier, mailer Mailer, publicDomain string, tokenTTL time.Duration) *Reservation {
	if tokenTTL <= 0 {
		tokenTTL = 48 * time.Hour
	}
	return &Reservation{
		db:           db,
		lifecycle:    lifecycle,
		prices:       prices,
		verifier:     verifier,
		mailer:       mailer,
		publicDomain: publicDomain,
		tokenTTL:     tokenTTL,
	}
}

// Request handles POST /reserve. Exactly one of inviteCode and rawToken must
// carry the payment. On success the name row is parked as reserved pending
// confirmation, all payment writes included in the same transaction.
func (s *Reservation) Request(rawName, email, inviteCode, rawToken string) (*models.ReservationToken, error) {
	display, canonical, err := canonicalize(rawName)
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if inviteCode == "" && rawToken == "" {
		return nil, fmt.Errorf("%w: an invite code or a cashu token is required", cashu.ErrPayment)
	}

	var tok *cashu.Token
	if inviteCode == "" {
		if tok, err = cashu.Decode(rawToken); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	expires := now.Add(s.tokenTTL)
	rt := models.ReservationToken{
		Token:     uuid.NewString(),
		Canonical: canonical,
		Email:     email,
		ExpiresAt: expires,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		reserved, err := s.lifecycle.isReservedWord(tx, canonical)
		if err != nil {
			return err
		}
		if reserved {
			return fmt.Errorf("%w: %q is a reserved word", ErrForbidden, canonical)
		}

		var record models.Name
		err = tx.Where("canonical = ?", canonical).First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = models.Name{Canonical: canonical}
		case err != nil:
			return fmt.Errorf("name lookup: %w", err)
		default:
			switch record.Status {
			case models.StatusBurned:
				return fmt.Errorf("%w: %q is permanently retired", ErrForbidden, canonical)
			case models.StatusActive:
				return fmt.Errorf("%w: %q is already claimed", ErrConflict, canonical)
			case models.StatusReserved:
				if !reservationLapsed(&record, now) {
					return fmt.Errorf("%w: %q is already reserved", ErrConflict, canonical)
				}
			case models.StatusRevoked:
				if !record.Recyclable {
					return fmt.Errorf("%w: %q is not available", ErrForbidden, canonical)
				}
			}
		}

		if inviteCode != "" {
			if err := redeemInvite(tx, inviteCode, canonical, now); err != nil {
				return err
			}
		} else {
			if err := s.verifier.Verify(tx, tok, canonical, s.prices.Price(canonical)); err != nil {
				return err
			}
		}

		record.Display = display
		record.Status = models.StatusReserved
		record.Recyclable = false
		record.ReservationEmail = email
		record.ConfirmationToken = rt.Token
		record.ReservationExpiresAt = &expires
		if record.ID == 0 {
			if err := tx.Create(&record).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: %q was reserved concurrently", ErrConflict, canonical)
				}
				return err
			}
		} else if err := tx.Save(&record).Error; err != nil {
			return err
		}

		return tx.Create(&rt).Error
	})
	if err != nil {
		return nil, err
	}

	confirmURL := fmt.Sprintf("https://%s/confirm?token=%s", s.publicDomain, rt.Token)
	if err := s.mailer.SendConfirmation(email, display, confirmURL); err != nil {
		// Delivery is best effort; the token stays valid and support can
		// resend the link.
		log.Printf("confirmation mail for %q failed: %v", canonical, err)
	}
	return &rt, nil
}

// redeemInvite consumes a single-use operator-provisioned code.
func redeemInvite(tx *gorm.DB, code, canonical string, now time.Time) error {
	var invite models.InviteCode
	if err := tx.Where("code = ?", code).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: unknown invite code", cashu.ErrPayment)
		}
		return fmt.Errorf("invite lookup: %w", err)
	}
	if invite.Used {
		return fmt.Errorf("%w: invite code already used", cashu.ErrPayment)
	}
	invite.Used = true
	invite.UsedBy = canonical
	invite.UsedAt = &now
	return tx.Save(&invite).Error
}

// Confirm redeems the emailed token.
func (s *Reservation) Confirm(token string) (*models.Name, error) {
	return s.lifecycle.ConfirmReservation(token)
}

// MintInvites creates count fresh invite codes for the operator.
func (s *Reservation) MintInvites(count int) ([]models.InviteCode, error) {
	if count < 1 || count > 500 {
		return nil, fmt.Errorf("%w: count must be between 1 and 500", ErrValidation)
	}
	invites := make([]models.InviteCode, count)
	for i := range invites {
		invites[i] = models.InviteCode{Code: uuid.NewString()}
	}
	if err := s.db.Create(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}
