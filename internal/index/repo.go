package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/imgbed/internal/apperr"
)

// AssetRow is one cataloged image.
type AssetRow struct {
	Category  string    `json:"category"`
	Name      string    `json:"name"`
	Seq       int       `json:"seq"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryStats aggregates one category.
type CategoryStats struct {
	Category string `json:"category"`
	Assets   int    `json:"assets"`
	Bytes    int64  `json:"bytes"`
}

// DuplicateGroup lists assets sharing identical content.
type DuplicateGroup struct {
	Checksum string     `json:"checksum"`
	Assets   []AssetRow `json:"assets"`
}

const assetColumns = `category, name, seq, checksum, size, width, height, updated_at`

// Listing order mirrors the gallery: numbered assets by seq, foreign ones last by name.
const assetOrder = `ORDER BY seq = 0, seq, name`

// UpsertCategory records a category and reports whether it was new.
func (db *DB) UpsertCategory(name string) (bool, error) {
	res, err := db.conn.Exec(`INSERT OR IGNORE INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return false, fmt.Errorf("index: upsert category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("index: upsert category: %w", err)
	}
	return n > 0, nil
}

// DeleteCategory removes a category together with its assets.
func (db *DB) DeleteCategory(name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM assets WHERE category = ?`, name); err != nil {
		return fmt.Errorf("index: delete category assets: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM categories WHERE name = ?`, name); err != nil {
		return fmt.Errorf("index: delete category: %w", err)
	}
	return tx.Commit()
}

// Categories returns every cataloged category name, sorted.
func (db *DB) Categories() ([]string, error) {
	rows, err := db.conn.Query(`SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("index: categories: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// UpsertAsset inserts or replaces one asset row.
func (db *DB) UpsertAsset(a AssetRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, name) DO UPDATE SET
			seq        = excluded.seq,
			checksum   = excluded.checksum,
			size       = excluded.size,
			width      = excluded.width,
			height     = excluded.height,
			updated_at = excluded.updated_at
	`, a.Category, a.Name, a.Seq, a.Checksum, a.Size, a.Width, a.Height, a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert asset: %w", err)
	}
	return nil
}

// DeleteAsset removes one asset row.
func (db *DB) DeleteAsset(category, name string) error {
	if _, err := db.conn.Exec(`DELETE FROM assets WHERE category = ? AND name = ?`, category, name); err != nil {
		return fmt.Errorf("index: delete asset: %w", err)
	}
	return nil
}

// GetAsset returns one row or apperr.ErrNotFound.
func (db *DB) GetAsset(category, name string) (*AssetRow, error) {
	row := db.conn.QueryRow(`SELECT `+assetColumns+` FROM assets WHERE category = ? AND name = ?`, category, name)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get asset: %w", err)
	}
	return &a, nil
}

// CategoryChecksums maps asset name to checksum for one category.
func (db *DB) CategoryChecksums(category string) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT name, checksum FROM assets WHERE category = ?`, category)
	if err != nil {
		return nil, fmt.Errorf("index: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, err
		}
		out[name] = sum
	}
	return out, rows.Err()
}

// ListCategoryAssets returns the rows of one category in gallery order.
func (db *DB) ListCategoryAssets(category string) ([]AssetRow, error) {
	return db.queryAssets(`SELECT `+assetColumns+` FROM assets WHERE category = ? `+assetOrder, category)
}

// FindByChecksum returns every asset with the given content checksum.
func (db *DB) FindByChecksum(sum string) ([]AssetRow, error) {
	return db.queryAssets(`SELECT `+assetColumns+` FROM assets WHERE checksum = ? ORDER BY category, seq = 0, seq, name`, sum)
}

// Duplicates groups assets whose content is byte-identical, across categories.
func (db *DB) Duplicates() ([]DuplicateGroup, error) {
	rows, err := db.queryAssets(`
		SELECT ` + assetColumns + ` FROM assets
		WHERE checksum IN (SELECT checksum FROM assets GROUP BY checksum HAVING count(*) > 1)
		ORDER BY checksum, category, seq = 0, seq, name`)
	if err != nil {
		return nil, err
	}
	groups := []DuplicateGroup{}
	for _, r := range rows {
		if n := len(groups); n == 0 || groups[n-1].Checksum != r.Checksum {
			groups = append(groups, DuplicateGroup{Checksum: r.Checksum})
		}
		last := &groups[len(groups)-1]
		last.Assets = append(last.Assets, r)
	}
	return groups, nil
}

// Stats aggregates asset counts and bytes per category, empty ones included.
func (db *DB) Stats() ([]CategoryStats, error) {
	rows, err := db.conn.Query(`
		SELECT c.name, count(a.name), coalesce(sum(a.size), 0)
		FROM categories c LEFT JOIN assets a ON a.category = c.name
		GROUP BY c.name ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("index: stats: %w", err)
	}
	defer rows.Close()
	out := []CategoryStats{}
	for rows.Next() {
		var s CategoryStats
		if err := rows.Scan(&s.Category, &s.Assets, &s.Bytes); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) queryAssets(query string, args ...any) ([]AssetRow, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query assets: %w", err)
	}
	defer rows.Close()
	out := []AssetRow{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(s scanner) (AssetRow, error) {
	var a AssetRow
	err := s.Scan(&a.Category, &a.Name, &a.Seq, &a.Checksum, &a.Size, &a.Width, &a.Height, &a.UpdatedAt)
	return a, err
}
