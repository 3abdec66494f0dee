package migrations

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

var indexes = []struct {
	name string
	sql  string
}{
	{"idx_polls_user", "CREATE INDEX IF NOT EXISTS idx_polls_user ON polls(user_id)"},
	{"idx_polls_created_at", "CREATE INDEX IF NOT EXISTS idx_polls_created_at ON polls(created_at DESC)"},
	{"idx_polls_public", "CREATE INDEX IF NOT EXISTS idx_polls_public ON polls(is_public, created_at DESC)"},

	{"idx_poll_options_poll", "CREATE INDEX IF NOT EXISTS idx_poll_options_poll ON poll_options(poll_id, position)"},

	{"idx_votes_poll", "CREATE INDEX IF NOT EXISTS idx_votes_poll ON votes(poll_id)"},
	{"idx_votes_option", "CREATE INDEX IF NOT EXISTS idx_votes_option ON votes(option_id)"},
	{"idx_votes_user", "CREATE INDEX IF NOT EXISTS idx_votes_user ON votes(poll_id, user_id)"},
}

// migration003Up creates the lookup indexes used by listings and tallies
func migration003Up(db *gorm.DB) error {
	for _, index := range indexes {
		if err := db.Exec(index.sql).Error; err != nil {
			return err
		}
	}
	return nil
}

// migration003Down drops the lookup indexes
func migration003Down(db *gorm.DB) error {
	for i := len(indexes) - 1; i >= 0; i-- {
		if err := db.Exec("DROP INDEX IF EXISTS " + pq.QuoteIdentifier(indexes[i].name)).Error; err != nil {
			return err
		}
	}
	return nil
}
