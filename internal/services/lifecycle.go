package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"namify/internal/models"
	"namify/internal/names"
)

// Lifecycle owns every transition of a name record. Nothing else writes the
// names table. Rows are never deleted: revocation and burning stand in for
// deletion, and burned is terminal.
type Lifecycle struct {
	db *gorm.DB
}

func NewLifecycle(db *gorm.DB) *Lifecycle {
	return &Lifecycle{db: db}
}

// Canonicalize validates a raw name without touching storage.
func (s *Lifecycle) Canonicalize(raw string) (display, canonical string, err error) {
	return canonicalize(raw)
}

func canonicalize(raw string) (display, canonical string, err error) {
	display, canonical, err = names.Canonicalize(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return display, canonical, nil
}

func (s *Lifecycle) isReservedWord(tx *gorm.DB, canonical string) (bool, error) {
	var count int64
	if err := tx.Model(&models.ReservedWord{}).Where("word = ?", canonical).Count(&count).Error; err != nil {
		return false, fmt.Errorf("reserved-word lookup: %w", err)
	}
	return count > 0, nil
}

// reservationLapsed reports whether a reserved row is only holding an
// unconfirmed reservation whose window has passed, which makes the name
// claimable again.
func reservationLapsed(record *models.Name, now time.Time) bool {
	if record.Status != models.StatusReserved {
		return false
	}
	if record.SubscriptionExpiresAt != nil && record.SubscriptionExpiresAt.After(now) {
		return false
	}
	return record.ReservationExpiresAt != nil && record.ReservationExpiresAt.Before(now)
}

// Reserve parks a name. The public path is screened against reserved words;
// the operator path bypasses the screen on purpose.
func (s *Lifecycle) Reserve(raw, reason string, public bool) (*models.Name, error) {
	display, canonical, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}

	var record models.Name
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if public {
			reserved, err := s.isReservedWord(tx, canonical)
			if err != nil {
				return err
			}
			if reserved {
				return fmt.Errorf("%w: %q is a reserved word", ErrForbidden, canonical)
			}
		}

		err := tx.Where("canonical = ?", canonical).First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = models.Name{
				Canonical:      canonical,
				Display:        display,
				Status:         models.StatusReserved,
				ReservedReason: reason,
			}
			return tx.Create(&record).Error
		case err != nil:
			return fmt.Errorf("name lookup: %w", err)
		}

		if record.Status == models.StatusBurned {
			return fmt.Errorf("%w: %q is permanently retired", ErrForbidden, canonical)
		}
		record.Status = models.StatusReserved
		record.Recyclable = false
		record.ReservedReason = reason
		return tx.Save(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Claim activates a name for ownerKey. A key holder owns at most one active
// name: any other active record under the same key is auto-revoked as
// recyclable inside the same transaction, so two concurrent claims serialize
// instead of leaving two active rows.
func (s *Lifecycle) Claim(raw, ownerKey string, relays []string) (*models.Name, error) {
	display, canonical, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var record models.Name
	err = s.db.Transaction(func(tx *gorm.DB) error {
		reserved, err := s.isReservedWord(tx, canonical)
		if err != nil {
			return err
		}
		if reserved {
			return fmt.Errorf("%w: %q is a reserved word", ErrForbidden, canonical)
		}

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
				if record.OwnerKey != ownerKey {
					return fmt.Errorf("%w: %q is owned by another key", ErrConflict, canonical)
				}
			case models.StatusReserved:
				if !reservationLapsed(&record, now) {
					return fmt.Errorf("%w: %q is reserved", ErrConflict, canonical)
				}
			case models.StatusRevoked:
				if !record.Recyclable {
					return fmt.Errorf("%w: %q is not recyclable", ErrForbidden, canonical)
				}
			}
		}

		if err := autoRevokeActive(tx, ownerKey, canonical, now); err != nil {
			return err
		}

		record.Display = display
		record.OwnerKey = ownerKey
		record.RelayHints = relays
		record.Status = models.StatusActive
		record.Recyclable = false
		record.ClaimedAt = &now
		record.ReservationEmail = ""
		record.ConfirmationToken = ""
		record.ReservationExpiresAt = nil
		if record.ID == 0 {
			if err := tx.Create(&record).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: %q was claimed concurrently", ErrConflict, canonical)
				}
				return err
			}
			return nil
		}
		return tx.Save(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Assign is the operator's forced activation. It skips the reserved-word
// screen and the ownership collision check but still refuses burned names.
func (s *Lifecycle) Assign(raw, ownerKey string) (*models.Name, error) {
	display, canonical, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var record models.Name
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("canonical = ?", canonical).First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = models.Name{Canonical: canonical}
		case err != nil:
			return fmt.Errorf("name lookup: %w", err)
		default:
			if record.Status == models.StatusBurned {
				return fmt.Errorf("%w: %q is permanently retired", ErrForbidden, canonical)
			}
		}

		if err := autoRevokeActive(tx, ownerKey, canonical, now); err != nil {
			return err
		}

		record.Display = display
		record.OwnerKey = ownerKey
		record.Status = models.StatusActive
		record.Recyclable = false
		record.ClaimedAt = &now
		if record.ID == 0 {
			return tx.Create(&record).Error
		}
		return tx.Save(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// autoRevokeActive moves every other active name of ownerKey to
// revoked+recyclable, enforcing the one-active-name-per-key invariant.
func autoRevokeActive(tx *gorm.DB, ownerKey, keepCanonical string, now time.Time) error {
	return tx.Model(&models.Name{}).
		Where("owner_key = ? AND status = ? AND canonical <> ?", ownerKey, models.StatusActive, keepCanonical).
		Updates(map[string]any{
			"status":     models.StatusRevoked,
			"recyclable": true,
			"revoked_at": now,
		}).Error
}

// Revoke takes an active or reserved name out of service. burn makes the
// retirement permanent.
func (s *Lifecycle) Revoke(raw string, burn bool) (*models.Name, error) {
	_, canonical, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var record models.Name
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("canonical = ?", canonical).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %q", ErrNotFound, canonical)
			}
			return fmt.Errorf("name lookup: %w", err)
		}

		switch record.Status {
		case models.StatusBurned:
			return fmt.Errorf("%w: %q is permanently retired", ErrForbidden, canonical)
		case models.StatusActive, models.StatusReserved:
		default:
			return fmt.Errorf("%w: %q is not active or reserved", ErrConflict, canonical)
		}

		if burn {
			record.Status = models.StatusBurned
			record.Recyclable = false
		} else {
			record.Status = models.StatusRevoked
			record.Recyclable = true
		}
		record.RevokedAt = &now
		return tx.Save(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ConfirmReservation redeems a confirmation token exactly once and settles
// the name into reserved with a year of subscription.
func (s *Lifecycle) ConfirmReservation(token string) (*models.Name, error) {
	now := time.Now()
	var record models.Name
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rt models.ReservationToken
		if err := tx.Where("token = ?", token).First(&rt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unknown confirmation token", ErrNotFound)
			}
			return fmt.Errorf("token lookup: %w", err)
		}
		if rt.ConfirmedAt != nil {
			return fmt.Errorf("%w: confirmation token", ErrAlreadyUsed)
		}
		if rt.ExpiresAt.Before(now) {
			return fmt.Errorf("%w: confirmation token", ErrExpired)
		}

		rt.ConfirmedAt = &now
		if err := tx.Save(&rt).Error; err != nil {
			return err
		}

		subscription := now.AddDate(1, 0, 0)
		err := tx.Where("canonical = ?", rt.Canonical).First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = models.Name{
				Canonical:        rt.Canonical,
				Display:          rt.Canonical,
				Status:           models.StatusReserved,
				ReservationEmail: rt.Email,
			}
		case err != nil:
			return fmt.Errorf("name lookup: %w", err)
		default:
			if record.Status == models.StatusBurned {
				return fmt.Errorf("%w: %q is permanently retired", ErrForbidden, rt.Canonical)
			}
			record.Status = models.StatusReserved
			record.ReservationEmail = rt.Email
		}
		record.SubscriptionExpiresAt = &subscription
		record.ReservationExpiresAt = nil
		record.ConfirmationToken = ""
		if record.ID == 0 {
			return tx.Create(&record).Error
		}
		return tx.Save(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Get fetches a record by canonical name.
func (s *Lifecycle) Get(canonical string) (*models.Name, error) {
	var record models.Name
	if err := s.db.Where("canonical = ?", canonical).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, canonical)
		}
		return nil, fmt.Errorf("name lookup: %w", err)
	}
	return &record, nil
}

// Resolve canonicalizes an alias and returns its record only when active,
// for NIP-05 discovery.
func (s *Lifecycle) Resolve(raw string) (*models.Name, error) {
	_, canonical, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}
	record, err := s.Get(canonical)
	if err != nil {
		return nil, err
	}
	if record.Status != models.StatusActive || record.OwnerKey == "" {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, canonical)
	}
	return record, nil
}

// ListActive returns every active record, for the full nostr.json map.
func (s *Lifecycle) ListActive() ([]models.Name, error) {
	var records []models.Name
	err := s.db.Where("status = ?", models.StatusActive).Order("canonical").Find(&records).Error
	return records, err
}

// Search paginates records for the operator console. q matches canonical and
// display as a substring; status filters exactly.
func (s *Lifecycle) Search(q, status string, page, limit int) ([]models.Name, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	query := s.db.Model(&models.Name{})
	if q != "" {
		pattern := "%" + q + "%"
		query = query.Where("canonical LIKE ? OR display LIKE ?", pattern, pattern)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var records []models.Name
	err := query.Order("canonical").Offset((page - 1) * limit).Limit(limit).Find(&records).Error
	return records, total, err
}
