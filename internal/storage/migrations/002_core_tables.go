package migrations

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// migration002Up creates all core tables using GORM AutoMigrate
func migration002Up(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// migration002Down drops all core tables
func migration002Down(db *gorm.DB) error {
	cascade := ""
	if isPostgres(db.Dialector) {
		cascade = " CASCADE"
	}

	for _, table := range Tables() {
		if err := db.Exec("DROP TABLE IF EXISTS " + pq.QuoteIdentifier(table) + cascade).Error; err != nil {
			return err
		}
	}

	return nil
}
