package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NotificationPrefs are a user's notification channel choices.
type NotificationPrefs struct {
	Email        bool `json:"email"`
	SMS          bool `json:"sms"`
	Push         bool `json:"push"`
	WeeklyDigest bool `json:"weekly_digest"`
}

// DefaultNotificationPrefs is returned for users who never saved preferences.
func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{Email: true, WeeklyDigest: true}
}

// SyncStatus records the outcome of the last pull from a listing source.
type SyncStatus struct {
	Name      string
	LastSync  time.Time
	ItemCount int
	LastError string
}

// ToggleFavorite flips whether userID has favorited listingID and returns
// the new state. Returns ErrNotFound if the listing does not exist.
// Thread-safe: acquires write lock.
func (s *Store) ToggleFavorite(userID, listingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRow(`SELECT 1 FROM listings WHERE id = ?`, listingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("lookup listing %s: %w", listingID, err)
	}

	res, err := tx.Exec(`DELETE FROM favorites WHERE user_id = ? AND listing_id = ?`, userID, listingID)
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}

	favorited := false
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = tx.Exec(`INSERT INTO favorites (user_id, listing_id, created_at) VALUES (?, ?, ?)`,
			userID, listingID, encodeTime(time.Now()))
		if err != nil {
			return false, fmt.Errorf("add favorite: %w", err)
		}
		favorited = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return favorited, nil
}

// Favorites returns the IDs of listings userID has favorited, most recent first.
// Thread-safe: acquires read lock.
func (s *Store) Favorites(userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT listing_id FROM favorites
		WHERE user_id = ?
		ORDER BY created_at DESC, listing_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NotificationPrefs returns userID's saved preferences, or the defaults.
// Thread-safe: acquires read lock.
func (s *Store) NotificationPrefs(userID string) (NotificationPrefs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var email, sms, push, digest int
	err := s.db.QueryRow(`
		SELECT email, sms, push, weekly_digest FROM notification_prefs WHERE user_id = ?
	`, userID).Scan(&email, &sms, &push, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultNotificationPrefs(), nil
	}
	if err != nil {
		return NotificationPrefs{}, fmt.Errorf("notification prefs for %s: %w", userID, err)
	}

	return NotificationPrefs{
		Email:        email != 0,
		SMS:          sms != 0,
		Push:         push != 0,
		WeeklyDigest: digest != 0,
	}, nil
}

// SaveNotificationPrefs stores userID's preferences, replacing any previous ones.
// Thread-safe: acquires write lock.
func (s *Store) SaveNotificationPrefs(userID string, prefs NotificationPrefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO notification_prefs (user_id, email, sms, push, weekly_digest, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email = excluded.email,
			sms = excluded.sms,
			push = excluded.push,
			weekly_digest = excluded.weekly_digest,
			updated_at = excluded.updated_at
	`, userID,
		boolToInt(prefs.Email),
		boolToInt(prefs.SMS),
		boolToInt(prefs.Push),
		boolToInt(prefs.WeeklyDigest),
		encodeTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save notification prefs for %s: %w", userID, err)
	}
	return nil
}

// UpdateSyncStatus records the outcome of a pull from the named source.
// Thread-safe: acquires write lock.
func (s *Store) UpdateSyncStatus(name string, itemCount int, syncErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errStr := ""
	if syncErr != nil {
		errStr = syncErr.Error()
	}

	_, err := s.db.Exec(`
		INSERT INTO sync_status (name, last_sync, item_count, last_error)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			last_sync = excluded.last_sync,
			item_count = excluded.item_count,
			last_error = excluded.last_error
	`, name, encodeTime(time.Now()), itemCount, errStr)
	return err
}

// GetSyncStatus returns the last recorded status for every source.
// Thread-safe: acquires read lock.
func (s *Store) GetSyncStatus() ([]SyncStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name, last_sync, item_count, last_error FROM sync_status ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []SyncStatus
	for rows.Next() {
		var (
			st       SyncStatus
			lastSync sql.NullString
		)
		if err := rows.Scan(&st.Name, &lastSync, &st.ItemCount, &st.LastError); err != nil {
			return nil, err
		}
		st.LastSync = decodeTime(lastSync)
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}
