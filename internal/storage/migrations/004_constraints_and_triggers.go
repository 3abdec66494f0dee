package migrations

import "gorm.io/gorm"

// migration004Up adds the owner foreign key, a title check and a trigger that
// rejects votes whose option belongs to another poll. PostgreSQL only; other
// dialects rely on the repository checks.
func migration004Up(db *gorm.DB) error {
	if !isPostgres(db.Dialector) {
		return nil
	}

	statements := []string{
		`ALTER TABLE polls
            ADD CONSTRAINT fk_polls_owner FOREIGN KEY (user_id)
            REFERENCES users(id) ON DELETE CASCADE`,

		`ALTER TABLE polls
            ADD CONSTRAINT chk_polls_title_not_blank CHECK (length(trim(title)) > 0)`,

		`ALTER TABLE poll_options
            ADD CONSTRAINT chk_poll_options_text_not_blank CHECK (length(trim(text)) > 0)`,

		`CREATE OR REPLACE FUNCTION validate_vote_option()
        RETURNS TRIGGER AS $$
        BEGIN
            IF NOT EXISTS (
                SELECT 1 FROM poll_options
                WHERE id = NEW.option_id AND poll_id = NEW.poll_id
            ) THEN
                RAISE EXCEPTION 'Option % does not belong to poll %', NEW.option_id, NEW.poll_id;
            END IF;

            RETURN NEW;
        END;
        $$ LANGUAGE plpgsql`,

		`CREATE TRIGGER trg_votes_option_belongs_to_poll
            BEFORE INSERT ON votes
            FOR EACH ROW EXECUTE FUNCTION validate_vote_option()`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}

// migration004Down removes the constraints and triggers
func migration004Down(db *gorm.DB) error {
	if !isPostgres(db.Dialector) {
		return nil
	}

	statements := []string{
		"DROP TRIGGER IF EXISTS trg_votes_option_belongs_to_poll ON votes",
		"DROP FUNCTION IF EXISTS validate_vote_option()",
		"ALTER TABLE poll_options DROP CONSTRAINT IF EXISTS chk_poll_options_text_not_blank",
		"ALTER TABLE polls DROP CONSTRAINT IF EXISTS chk_polls_title_not_blank",
		"ALTER TABLE polls DROP CONSTRAINT IF EXISTS fk_polls_owner",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
