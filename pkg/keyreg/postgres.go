package keyreg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Patchlock-Labs/patchlock/core/pkg/contracts"

	_ "github.com/lib/pq"
)

// PostgresRegistry persists key records in Postgres for shared deployments.
type PostgresRegistry struct {
	db *sql.DB
}

// NewPostgresRegistry wraps an existing handle. Call Init once to migrate.
func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

const pgKeySchema = `
CREATE TABLE IF NOT EXISTS signing_keys (
	key_id TEXT PRIMARY KEY,
	public_key TEXT NOT NULL,
	owner TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	revoked BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_signing_keys_owner ON signing_keys(owner);
`

// Init creates the schema.
func (r *PostgresRegistry) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, pgKeySchema)
	if err != nil {
		return fmt.Errorf("keyreg: init postgres schema: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) GetPublicKey(ctx context.Context, keyID string) (*contracts.PublicKeyRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT key_id, public_key, owner, registered_at, expires_at, revoked
		FROM signing_keys WHERE key_id = $1`, keyID)

	var record contracts.PublicKeyRecord
	var expires sql.NullTime
	err := row.Scan(&record.KeyID, &record.PublicKey, &record.Owner, &record.RegisteredAt, &expires, &record.Revoked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keyreg: get key %s: %w", keyID, err)
	}
	if expires.Valid {
		t := expires.Time
		record.ExpiresAt = &t
	}
	return &record, nil
}

func (r *PostgresRegistry) RegisterPublicKey(ctx context.Context, record *contracts.PublicKeyRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	var expires *time.Time
	if record.ExpiresAt != nil {
		utc := record.ExpiresAt.UTC()
		expires = &utc
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signing_keys (key_id, public_key, owner, registered_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key_id) DO NOTHING`,
		record.KeyID, record.PublicKey, record.Owner, record.RegisteredAt.UTC(), expires, record.Revoked)
	if err != nil {
		return fmt.Errorf("keyreg: register key %s: %w", record.KeyID, err)
	}

	// ON CONFLICT DO NOTHING swallows duplicates; surface them explicitly so
	// a key ID can never be silently rebound to different material.
	existing, err := r.GetPublicKey(ctx, record.KeyID)
	if err != nil {
		return err
	}
	if existing != nil && existing.PublicKey != record.PublicKey {
		return ErrDuplicateKey
	}
	return nil
}

func (r *PostgresRegistry) RevokeKey(ctx context.Context, keyID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE signing_keys SET revoked = TRUE WHERE key_id = $1`, keyID)
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

func (r *PostgresRegistry) ListKeys(ctx context.Context, owner string) ([]contracts.PublicKeyRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key_id, public_key, owner, registered_at, expires_at, revoked
		FROM signing_keys WHERE owner = $1 ORDER BY registered_at`, owner)
	if err != nil {
		return nil, fmt.Errorf("keyreg: list keys for %s: %w", owner, err)
	}
	defer rows.Close()

	var out []contracts.PublicKeyRecord
	for rows.Next() {
		var record contracts.PublicKeyRecord
		var expires sql.NullTime
		if err := rows.Scan(&record.KeyID, &record.PublicKey, &record.Owner, &record.RegisteredAt, &expires, &record.Revoked); err != nil {
			return nil, fmt.Errorf("keyreg: scan key row: %w", err)
		}
		if expires.Valid {
			t := expires.Time
			record.ExpiresAt = &t
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keyreg: list keys for %s: %w", owner, err)
	}
	return out, nil
}
