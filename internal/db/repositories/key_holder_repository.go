// key_holder_repository.go implements KeyHolderRepository, providing approval,
// lookup, listing, and cascading deactivation of key holders. One repository
// instance serves one namespace: the operational registry (key_holders, owning
// user and process keys) or the admin registry (admin_key_holders, owning
// admin keys).
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/log-center/log-center/internal/db/models"
)

// KeyHolderRepository handles key holder database operations for one namespace.
type KeyHolderRepository struct {
	db          *sql.DB
	holderTable string
	keyTables   []string
}

// NewKeyHolderRepository creates a repository over the operational holder
// registry. Deactivation cascades into the user and process key tables.
func NewKeyHolderRepository(db *sql.DB) *KeyHolderRepository {
	return &KeyHolderRepository{
		db:          db,
		holderTable: "key_holders",
		keyTables:   []string{"user_api_keys", "process_api_keys"},
	}
}

// NewAdminKeyHolderRepository creates a repository over the admin holder
// registry. Deactivation cascades into the admin key table only.
func NewAdminKeyHolderRepository(db *sql.DB) *KeyHolderRepository {
	return &KeyHolderRepository{
		db:          db,
		holderTable: "admin_key_holders",
		keyTables:   []string{"admin_api_keys"},
	}
}

// Approve registers a new holder. Returns ErrDuplicateHolder when a record
// for the email already exists, including deactivated ones: a deactivated
// email stays excluded permanently and is never re-approvable.
func (r *KeyHolderRepository) Approve(ctx context.Context, email, name string) (*models.KeyHolder, error) {
	holder := &models.KeyHolder{
		Email:      email,
		Name:       name,
		Active:     true,
		ApprovedAt: time.Now().UTC(),
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (email, name, active, approved_at)
		VALUES ($1, $2, $3, $4)
	`, r.holderTable)

	_, err := r.db.ExecContext(ctx, query, holder.Email, holder.Name, holder.Active, holder.ApprovedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("approve %s: %w", email, ErrDuplicateHolder)
		}
		return nil, fmt.Errorf("approve %s: %w", email, err)
	}

	return holder, nil
}

// GetByEmail retrieves a holder by email. Returns ErrNotFound if absent.
func (r *KeyHolderRepository) GetByEmail(ctx context.Context, email string) (*models.KeyHolder, error) {
	query := fmt.Sprintf(`
		SELECT email, name, active, approved_at, deactivated_at
		FROM %s
		WHERE email = $1
	`, r.holderTable)

	holder := &models.KeyHolder{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&holder.Email,
		&holder.Name,
		&holder.Active,
		&holder.ApprovedAt,
		&holder.DeactivatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("holder %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return holder, nil
}

// List retrieves all holders in the namespace, newest approval first.
func (r *KeyHolderRepository) List(ctx context.Context) ([]*models.KeyHolder, error) {
	query := fmt.Sprintf(`
		SELECT email, name, active, approved_at, deactivated_at
		FROM %s
		ORDER BY approved_at DESC
	`, r.holderTable)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holders := make([]*models.KeyHolder, 0)
	for rows.Next() {
		holder := &models.KeyHolder{}
		err := rows.Scan(
			&holder.Email,
			&holder.Name,
			&holder.Active,
			&holder.ApprovedAt,
			&holder.DeactivatedAt,
		)
		if err != nil {
			return nil, err
		}
		holders = append(holders, holder)
	}

	return holders, rows.Err()
}

// Deactivate marks the holder inactive and, in the same transaction,
// deactivates every active key the holder owns across the namespace's key
// tables. Either everything commits or nothing does. Returns the updated
// holder plus the keys that were deactivated by the cascade. Deactivating an
// already inactive holder is a no-op that returns the holder unchanged.
func (r *KeyHolderRepository) Deactivate(ctx context.Context, email string) (*models.KeyHolder, []*models.APIKey, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	query := fmt.Sprintf(`
		UPDATE %s
		SET active = FALSE,
		    deactivated_at = COALESCE(deactivated_at, $2)
		WHERE email = $1
		RETURNING email, name, active, approved_at, deactivated_at
	`, r.holderTable)

	holder := &models.KeyHolder{}
	err = tx.QueryRowContext(ctx, query, email, now).Scan(
		&holder.Email,
		&holder.Name,
		&holder.Active,
		&holder.ApprovedAt,
		&holder.DeactivatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("holder %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	cascaded := make([]*models.APIKey, 0)
	for _, table := range r.keyTables {
		keys, err := deactivateOwnerKeysTx(ctx, tx, table, email, now)
		if err != nil {
			return nil, nil, fmt.Errorf("cascade %s: %w", table, err)
		}
		cascaded = append(cascaded, keys...)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	return holder, cascaded, nil
}
