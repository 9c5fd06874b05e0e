package database

import (
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"namify/internal/models"
)

var DB *gorm.DB

func InitDB(dbPath string) error {
	var err error
	// TranslateError turns driver unique-constraint violations into
	// gorm.ErrDuplicatedKey; claim conflicts and the double-spend guard
	// depend on it.
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}

	log.Println("Migrating database...")
	return Migrate(DB)
}

// Migrate creates or updates the registry schema. Tests call it on their own
// in-memory handles.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Name{},
		&models.ReservedWord{},
		&models.ReservationToken{},
		&models.SpentProof{},
		&models.InviteCode{},
	)
}
