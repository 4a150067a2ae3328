// Package store persists the small amount of durable bot state: which
// chats have link auto-detection enabled and which users hold a premium
// entitlement.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS enabled_chats (
	chat_id INTEGER PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS premium_users (
	user_id INTEGER PRIMARY KEY
);
`

// Store wraps the sqlite database holding bot toggles and entitlements.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer; serialize all access through one conn
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnableChat turns on link auto-detection for a chat.
func (s *Store) EnableChat(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO enabled_chats (chat_id) VALUES (?)`, chatID)
	return err
}

// DisableChat turns off link auto-detection for a chat.
func (s *Store) DisableChat(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM enabled_chats WHERE chat_id = ?`, chatID)
	return err
}

// IsChatEnabled reports whether auto-detection is on for a chat.
func (s *Store) IsChatEnabled(ctx context.Context, chatID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM enabled_chats WHERE chat_id = ?`, chatID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GrantPremium records a premium entitlement for a user.
func (s *Store) GrantPremium(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO premium_users (user_id) VALUES (?)`, userID)
	return err
}

// RevokePremium removes a user's premium entitlement.
func (s *Store) RevokePremium(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM premium_users WHERE user_id = ?`, userID)
	return err
}

// IsPremium reports whether a user holds a premium entitlement.
func (s *Store) IsPremium(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM premium_users WHERE user_id = ?`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
