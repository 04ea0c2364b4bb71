// Package modlog persists executed moderation actions and operator settings
// in a local sqlite database.
package modlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Service struct {
	db *sql.DB
}

// Open opens (or creates) the moderation log database.
func Open(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open modlog db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close closes the database.
func (s *Service) Close() error {
	return s.db.Close()
}

// RecordAction appends a moderation action. Missing ActionID and CreatedAt
// are filled in.
func (s *Service) RecordAction(a *ModAction) error {
	if a.ActionID == "" {
		a.ActionID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO moderation_actions (action_id, group_jid, participant, rule, verb, detail, session_role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ActionID, a.GroupJID, a.Participant, a.Rule, a.Verb, a.Detail, a.SessionRole, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// RecentActions returns the latest actions for a group, newest first.
func (s *Service) RecentActions(groupJID string, limit int) ([]ModAction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, action_id, group_jid, participant, rule, verb, detail, session_role, created_at
		FROM moderation_actions
		WHERE group_jid = ?
		ORDER BY id DESC
		LIMIT ?`, groupJID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []ModAction
	for rows.Next() {
		var a ModAction
		if err := rows.Scan(&a.ID, &a.ActionID, &a.GroupJID, &a.Participant, &a.Rule, &a.Verb, &a.Detail, &a.SessionRole, &a.CreatedAt); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// GetSetting returns a settings value, or "" when unset.
func (s *Service) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting stores a settings value.
func (s *Service) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	return err
}
