package database

import (
	"database/sql"
	"fmt"
)

// GetDataset returns the registered dataset for a category, or nil.
func (db *DB) GetDataset(category string) (*KnowledgeDataset, error) {
	var d KnowledgeDataset
	var created string
	err := db.conn.QueryRow(
		"SELECT category, dataset_id, name, created_at FROM knowledge_datasets WHERE category = ?",
		category,
	).Scan(&d.Category, &d.DatasetID, &d.Name, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.CreatedAt = parseTime(created)
	return &d, nil
}

// ClaimDataset registers datasetID for category unless another dataset
// already holds the slot. It returns the registered entry and whether this
// call won.
func (db *DB) ClaimDataset(category, datasetID, name string) (*KnowledgeDataset, bool, error) {
	result, err := db.conn.Exec(
		`INSERT INTO knowledge_datasets (category, dataset_id, name, created_at)
		VALUES (?, ?, ?, ?) ON CONFLICT(category) DO NOTHING`,
		category, datasetID, name, db.stamp(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("claiming dataset for %s: %w", category, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	d, err := db.GetDataset(category)
	if err != nil {
		return nil, false, err
	}
	if d == nil {
		return nil, false, fmt.Errorf("dataset for %s vanished after claim", category)
	}
	return d, n == 1, nil
}

// ForgetDataset drops the registry entry for a category if it still points
// at datasetID. It reports whether an entry was removed.
func (db *DB) ForgetDataset(category, datasetID string) (bool, error) {
	res, err := db.conn.Exec(
		"DELETE FROM knowledge_datasets WHERE category = ? AND dataset_id = ?", category, datasetID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListDatasets returns every registered dataset.
func (db *DB) ListDatasets() ([]KnowledgeDataset, error) {
	rows, err := db.conn.Query(
		"SELECT category, dataset_id, name, created_at FROM knowledge_datasets ORDER BY category",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	datasets := []KnowledgeDataset{}
	for rows.Next() {
		var d KnowledgeDataset
		var created string
		if err := rows.Scan(&d.Category, &d.DatasetID, &d.Name, &created); err != nil {
			return nil, err
		}
		d.CreatedAt = parseTime(created)
		datasets = append(datasets, d)
	}
	return datasets, rows.Err()
}

// ClearDatasets empties the dataset registry.
func (db *DB) ClearDatasets() error {
	if _, err := db.conn.Exec("DELETE FROM knowledge_datasets"); err != nil {
		return fmt.Errorf("clearing dataset registry: %w", err)
	}
	return nil
}
