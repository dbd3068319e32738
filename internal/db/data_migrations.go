package db

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DataMigration represents a data migration
type DataMigration struct {
	Version     string
	Description string
	Up          func(*sql.Tx) error
}

// GetDataMigrations return all data migrations
func GetDataMigrations() []DataMigration {
	return []DataMigration{
		{
			Version:     "data_001",
			Description: "Backfill the genesis gate for policies created before gates were recorded",
			Up:          backfillGenesisGate,
		},
		{
			Version:     "data_002",
			Description: "Lowercase trusted remote paths",
			Up:          lowercaseTrustedPaths,
		},
		{
			Version:     "data_003",
			Description: "Seed the notification counter from the existing log",
			Up:          seedNotificationCounter,
		},
	}
}

// RunDataMigrations applies pending data migrations, each in its own transaction
func RunDataMigrations(db *sql.DB, log *logrus.Logger) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS data_migrations (
			version     VARCHAR(32) PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create data_migrations table: %w", err)
	}

	for _, m := range GetDataMigrations() {
		var exists bool
		if err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM data_migrations WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
			return fmt.Errorf("check data migration %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		log.WithField("version", m.Version).Infof("🔄 Running data migration: %s", m.Description)

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("data migration %s: %w", m.Version, err)
		}
		if _, err := tx.Exec(`INSERT INTO data_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record data migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func backfillGenesisGate(tx *sql.Tx) error {
	_, err := tx.Exec(`
		INSERT INTO version_gates (version, name, initialized_by, initialized_at)
		SELECT 1, 'genesis', owner, created_at
		FROM level_policies
		WHERE version >= 1
		ON CONFLICT (version) DO NOTHING`)
	return err
}

func lowercaseTrustedPaths(tx *sql.Tx) error {
	_, err := tx.Exec(`UPDATE trusted_remotes SET path = LOWER(path) WHERE path <> LOWER(path)`)
	return err
}

func seedNotificationCounter(tx *sql.Tx) error {
	_, err := tx.Exec(`
		INSERT INTO notification_counters (id, last_seq, updated_at)
		SELECT 1, COALESCE(MAX(seq), 0), NOW()
		FROM notifications
		ON CONFLICT (id) DO UPDATE SET last_seq = GREATEST(notification_counters.last_seq, EXCLUDED.last_seq)`)
	return err
}
