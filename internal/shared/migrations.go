package shared

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// Migration is a single numbered schema change with forward and
// rollback statements.
type Migration struct {
	Number int
	Name   string
	Up     string
	Down   string
}

// loadMigrations reads the embedded sql directory and pairs up
// NNNN_name_up.sql / NNNN_name_down.sql files by number.
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFS.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byNumber := make(map[int]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		base := strings.TrimSuffix(name, ".sql")
		var down bool
		switch {
		case strings.HasSuffix(base, "_up"):
			base = strings.TrimSuffix(base, "_up")
		case strings.HasSuffix(base, "_down"):
			base = strings.TrimSuffix(base, "_down")
			down = true
		default:
			return nil, fmt.Errorf("migration %s must end in _up.sql or _down.sql", name)
		}

		numStr, migName, found := strings.Cut(base, "_")
		if !found {
			return nil, fmt.Errorf("migration %s must be named NNNN_name_{up,down}.sql", name)
		}
		num, err := strconv.Atoi(numStr)
		if err != nil {
			return nil, fmt.Errorf("migration %s has non-numeric prefix: %w", name, err)
		}

		data, err := migrationFS.ReadFile("sql/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		m, ok := byNumber[num]
		if !ok {
			m = &Migration{Number: num, Name: migName}
			byNumber[num] = m
		}
		if down {
			m.Down = string(data)
		} else {
			m.Up = string(data)
		}
	}

	migrations := make([]Migration, 0, len(byNumber))
	for _, m := range byNumber {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %d (%s) is missing its up file", m.Number, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Number < migrations[j].Number
	})
	return migrations, nil
}

func ensureMigrationTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		number INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

// RunMigrations applies all pending migrations in order, each in its
// own transaction.
func RunMigrations(db *sql.DB) error {
	if err := ensureMigrationTable(db); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var applied int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE number = ?", m.Number).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Number, err)
		}
		if applied > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Number, err)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Number, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (number, name) VALUES (?, ?)", m.Number, m.Name); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Number, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Number, err)
		}
	}
	return nil
}

// RollbackMigration reverts the most recently applied migration.
func RollbackMigration(db *sql.DB) error {
	if err := ensureMigrationTable(db); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var number int
	err := db.QueryRow("SELECT number FROM schema_migrations ORDER BY number DESC LIMIT 1").Scan(&number)
	if err == sql.ErrNoRows {
		return fmt.Errorf("no migrations to roll back")
	}
	if err != nil {
		return fmt.Errorf("failed to find last migration: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Number != number {
			continue
		}
		if m.Down == "" {
			return fmt.Errorf("migration %d (%s) has no down file", m.Number, m.Name)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin rollback of %d: %w", m.Number, err)
		}
		if _, err := tx.Exec(m.Down); err != nil {
			tx.Rollback()
			return fmt.Errorf("rollback of %d (%s) failed: %w", m.Number, m.Name, err)
		}
		if _, err := tx.Exec("DELETE FROM schema_migrations WHERE number = ?", m.Number); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to unrecord migration %d: %w", m.Number, err)
		}
		return tx.Commit()
	}
	return fmt.Errorf("migration %d not found in embedded files", number)
}
