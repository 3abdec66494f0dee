package migrations

import (
	"github.com/gravadigital/polls-api/internal/domain/account"
	"github.com/gravadigital/polls-api/internal/domain/poll"
)

// AllModels returns all models in creation order. Users come first so the
// poll owner foreign key can be added once every table exists.
func AllModels() []any {
	return append([]any{&account.User{}}, poll.AllModels()...)
}

// Tables lists the managed tables in drop order
func Tables() []string {
	return []string{"votes", "poll_options", "polls", "users"}
}

func isPostgres(db interface{ Name() string }) bool {
	return db.Name() == "postgres"
}
