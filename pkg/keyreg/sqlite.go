package keyreg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteRegistry persists key records in SQLite for single-node deployments.
type SQLiteRegistry struct {
	db *sql.DB
}

// OpenSQLiteRegistry opens (or creates) the registry database at path.
func OpenSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("keyreg: open sqlite: %w", err)
	}
	return NewSQLiteRegistry(db)
}

// NewSQLiteRegistry wraps an existing handle and runs migrations.
func NewSQLiteRegistry(db *sql.DB) (*SQLiteRegistry, error) {
	r := &SQLiteRegistry{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRegistry) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS signing_keys (
		key_id TEXT PRIMARY KEY,
		public_key TEXT NOT NULL,
		owner TEXT NOT NULL,
		registered_at DATETIME NOT NULL,
		expires_at DATETIME,
		revoked INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_signing_keys_owner ON signing_keys(owner);`
	_, err := r.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("keyreg: migrate: %w", err)
	}
	return nil
}

func (r *SQLiteRegistry) GetPublicKey(ctx context.Context, keyID string) (*contracts.PublicKeyRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT key_id, public_key, owner, registered_at, expires_at, revoked
		FROM signing_keys WHERE key_id = ?`, keyID)
	record, err := scanKeyRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keyreg: get key %s: %w", keyID, err)
	}
	return record, nil
}

func (r *SQLiteRegistry) RegisterPublicKey(ctx context.Context, record *contracts.PublicKeyRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	existing, err := r.GetPublicKey(ctx, record.KeyID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateKey
	}

	var expires *time.Time
	if record.ExpiresAt != nil {
		utc := record.ExpiresAt.UTC()
		expires = &utc
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO signing_keys (key_id, public_key, owner, registered_at, expires_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.KeyID, record.PublicKey, record.Owner, record.RegisteredAt.UTC(), expires, boolToInt(record.Revoked))
	if err != nil {
		return fmt.Errorf("keyreg: register key %s: %w", record.KeyID, err)
	}
	return nil
}

func (r *SQLiteRegistry) RevokeKey(ctx context.Context, keyID string) error {
	// Setting revoked=1 on an already-revoked row is a no-op by construction.
	res, err := r.db.ExecContext(ctx, `UPDATE signing_keys SET revoked = 1 WHERE key_id = ?`, keyID)
	if err != nil {
		return fmt.Errorf("keyreg: revoke key %s: %w", keyID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("keyreg: revoke key %s: %w", keyID, err)
	}
	if affected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (r *SQLiteRegistry) ListKeys(ctx context.Context, owner string) ([]contracts.PublicKeyRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key_id, public_key, owner, registered_at, expires_at, revoked
		FROM signing_keys WHERE owner = ? ORDER BY registered_at`, owner)
	if err != nil {
		return nil, fmt.Errorf("keyreg: list keys for %s: %w", owner, err)
	}
	defer rows.Close()

	var out []contracts.PublicKeyRecord
	for rows.Next() {
		record, err := scanKeyRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("keyreg: scan key row: %w", err)
		}
		out = append(out, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keyreg: list keys for %s: %w", owner, err)
	}
	return out, nil
}

// Close closes the underlying database handle.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeyRecord(row rowScanner) (*contracts.PublicKeyRecord, error) {
	var record contracts.PublicKeyRecord
	var expires sql.NullTime
	var revoked int
	err := row.Scan(&record.KeyID, &record.PublicKey, &record.Owner, &record.RegisteredAt, &expires, &revoked)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		record.ExpiresAt = &t
	}
	record.Revoked = revoked != 0
	return &record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
