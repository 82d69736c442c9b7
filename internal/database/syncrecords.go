package database

import (
	"database/sql"
	"fmt"
)

const syncRecordColumns = `article_id, dataset_id, document_id, content_hash, status, last_synced,
	last_attempt, error_message, error_kind, attempts, created_at, updated_at`

// upsertSyncRecordSQL merges a SyncUpdate into sync_records in one statement.
// Unqualified columns in the DO UPDATE clause read the stored row.
//
//	?1 article_id  ?2 dataset_id  ?3 document_id  ?4 content_hash  ?5 status
//	?6 last_synced ?7 last_attempt ?8 error_message ?9 error_kind
//	?10 attempts (set) ?11 increment flag ?12 now
const upsertSyncRecordSQL = `
INSERT INTO sync_records (` + syncRecordColumns + `)
VALUES (
    ?1, COALESCE(?2, ''), COALESCE(?3, ''), COALESCE(?4, ''), COALESCE(?5, 'pending'), ?6, ?7,
    CASE WHEN COALESCE(?5, 'pending') = 'failed' THEN ?8 END,
    CASE WHEN COALESCE(?5, 'pending') = 'failed' THEN ?9 END,
    CASE WHEN ?10 IS NOT NULL THEN ?10 WHEN ?11 THEN 1 ELSE 0 END,
    ?12, ?12
)
ON CONFLICT(article_id) DO UPDATE SET
    dataset_id = COALESCE(?2, dataset_id),
    document_id = COALESCE(?3, document_id),
    content_hash = COALESCE(?4, content_hash),
    status = COALESCE(?5, status),
    last_synced = COALESCE(?6, last_synced),
    last_attempt = COALESCE(?7, last_attempt),
    error_message = CASE WHEN COALESCE(?5, status) = 'failed' THEN COALESCE(?8, error_message) END,
    error_kind = CASE WHEN COALESCE(?5, status) = 'failed' THEN COALESCE(?9, error_kind) END,
    attempts = CASE WHEN ?10 IS NOT NULL THEN ?10 WHEN ?11 THEN attempts + 1 ELSE attempts END,
    updated_at = ?12`

// GetSyncRecord returns the sync record for an article, or nil if none exists.
func (db *DB) GetSyncRecord(articleID string) (*SyncRecord, error) {
	r, err := scanSyncRecord(db.conn.QueryRow(
		`SELECT `+syncRecordColumns+` FROM sync_records WHERE article_id = ?`, articleID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UpsertSyncRecord merges u into the article's record, creating a pending
// record first if none exists. Error fields are cleared unless the
// resulting status is failed.
func (db *DB) UpsertSyncRecord(articleID string, u SyncUpdate) error {
	var attempts any
	if u.Attempts != nil {
		attempts = *u.Attempts
	}
	_, err := db.conn.Exec(upsertSyncRecordSQL,
		articleID, u.DatasetID, u.DocumentID, u.ContentHash, u.Status,
		nullTime(u.LastSynced), nullTime(u.LastAttempt), u.ErrorMessage, u.ErrorKind,
		attempts, boolInt(u.IncrementAttempts), db.stamp(),
	)
	if err != nil {
		return fmt.Errorf("upserting sync record %s: %w", articleID, err)
	}
	return nil
}

// DeleteSyncRecord removes an article's record. Missing records are ignored.
func (db *DB) DeleteSyncRecord(articleID string) error {
	if _, err := db.conn.Exec("DELETE FROM sync_records WHERE article_id = ?", articleID); err != nil {
		return fmt.Errorf("deleting sync record %s: %w", articleID, err)
	}
	return nil
}

// ListSyncRecords returns all records, most recently updated first.
func (db *DB) ListSyncRecords() ([]SyncRecord, error) {
	return db.querySyncRecords(`SELECT ` + syncRecordColumns + ` FROM sync_records
		ORDER BY updated_at DESC, article_id`)
}

// ListSyncRecordsByStatus returns records with the given status, oldest attempt first.
func (db *DB) ListSyncRecordsByStatus(status string) ([]SyncRecord, error) {
	return db.querySyncRecords(`SELECT `+syncRecordColumns+` FROM sync_records
		WHERE status = ? ORDER BY last_attempt, article_id`, status)
}

// ShouldSync reports whether an article with currentHash needs a remote
// upsert: it has no record, its record failed, or its content changed.
func (db *DB) ShouldSync(articleID, currentHash string) (bool, error) {
	var status, hash string
	err := db.conn.QueryRow(
		"SELECT status, content_hash FROM sync_records WHERE article_id = ?", articleID,
	).Scan(&status, &hash)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return status == SyncFailed || hash != currentHash, nil
}

// GetSyncStats aggregates all sync records.
func (db *DB) GetSyncStats() (*SyncStats, error) {
	var s SyncStats
	var last sql.NullString
	err := db.conn.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(status = 'synced'), 0),
		COALESCE(SUM(status = 'pending'), 0),
		COALESCE(SUM(status = 'failed'), 0),
		MAX(CASE WHEN status = 'synced' THEN last_synced END)
		FROM sync_records`,
	).Scan(&s.Total, &s.Synced, &s.Pending, &s.Failed, &last)
	if err != nil {
		return nil, fmt.Errorf("computing sync stats: %w", err)
	}
	s.LastSyncTime = parseNullTime(last)
	return &s, nil
}

// ClearSyncRecords removes every sync record.
func (db *DB) ClearSyncRecords() error {
	if _, err := db.conn.Exec("DELETE FROM sync_records"); err != nil {
		return fmt.Errorf("clearing sync records: %w", err)
	}
	return nil
}

func (db *DB) querySyncRecords(query string, args ...any) ([]SyncRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []SyncRecord{}
	for rows.Next() {
		r, err := scanSyncRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func scanSyncRecord(row scanner) (*SyncRecord, error) {
	var r SyncRecord
	var lastSynced, lastAttempt, errMsg, errKind sql.NullString
	var created, updated string
	if err := row.Scan(&r.ArticleID, &r.DatasetID, &r.DocumentID, &r.ContentHash, &r.Status,
		&lastSynced, &lastAttempt, &errMsg, &errKind, &r.Attempts, &created, &updated); err != nil {
		return nil, err
	}
	r.LastSynced = parseNullTime(lastSynced)
	r.LastAttempt = parseNullTime(lastAttempt)
	if errMsg.Valid {
		r.ErrorMessage = &errMsg.String
	}
	if errKind.Valid {
		r.ErrorKind = &errKind.String
	}
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return &r, nil
}
