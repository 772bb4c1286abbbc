// api_key_repository.go implements APIKeyRepository, the polymorphic key
// store. Keys live in one table per kind (user_api_keys, process_api_keys,
// admin_api_keys) but are addressed as a single collection: token lookup,
// deactivation, and listings run over the union of the kind tables. Global
// token uniqueness across every kind and all time is enforced by the
// api_key_tokens registry table, whose primary key rejects duplicate tokens
// inside the issuance transaction.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/log-center/log-center/internal/auth"
	"github.com/log-center/log-center/internal/db/models"
	"github.com/log-center/log-center/internal/telemetry"
)

const uniqueViolation = pq.ErrorCode("23505")

// maxTokenAttempts caps the redraw loop when a freshly generated token
// collides with an existing one. At 64 hex characters of entropy a single
// collision is already extraordinary; exhausting the budget means the
// generator is broken, so issuance fails with ErrTokenCollision.
const maxTokenAttempts = 5

// errTokenTaken signals one collision inside the issuance loop.
var errTokenTaken = errors.New("token already registered")

type kindTable struct {
	table      string
	kind       models.KeyKind
	hasProcess bool
}

var kindTables = []kindTable{
	{table: "user_api_keys", kind: models.KeyKindUser},
	{table: "process_api_keys", kind: models.KeyKindProcess, hasProcess: true},
	{table: "admin_api_keys", kind: models.KeyKindAdmin},
}

func tableForKind(kind models.KeyKind) (kindTable, error) {
	for _, kt := range kindTables {
		if kt.kind == kind {
			return kt, nil
		}
	}
	return kindTable{}, fmt.Errorf("no table for key kind %q", kind)
}

// selectList returns the uniform column list used to read any kind table into
// a models.APIKey. Tables without process columns contribute NULLs so every
// branch of a UNION has the same shape.
func (kt kindTable) selectList() string {
	if kt.hasProcess {
		return fmt.Sprintf(
			"token, owner_email, '%s' AS kind, process_name, environment, active, created_at, deactivated_at",
			kt.kind)
	}
	return fmt.Sprintf(
		"token, owner_email, '%s' AS kind, NULL AS process_name, NULL AS environment, active, created_at, deactivated_at",
		kt.kind)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAPIKey(row rowScanner) (*models.APIKey, error) {
	key := &models.APIKey{}
	var processName, environment sql.NullString
	err := row.Scan(
		&key.Token,
		&key.OwnerEmail,
		&key.Kind,
		&processName,
		&environment,
		&key.Active,
		&key.CreatedAt,
		&key.DeactivatedAt,
	)
	if err != nil {
		return nil, err
	}
	if processName.Valid {
		key.ProcessName = &processName.String
	}
	if environment.Valid {
		env := models.Environment(environment.String)
		key.Environment = &env
	}
	return key, nil
}

// APIKeyRepository handles API key database operations across all kinds.
type APIKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Issue creates a new key of the given kind for ownerEmail. The owner must be
// an active holder in the matching namespace (admin kind checks
// admin_key_holders, user and process kinds check key_holders), otherwise
// ErrHolderNotApproved. processName and environment are required for process
// kind keys and ignored for the other kinds.
//
// Each attempt registers the candidate token in api_key_tokens and inserts
// the kind row in one transaction; a primary key violation on the registry
// rolls back and redraws with a fresh token, up to maxTokenAttempts.
func (r *APIKeyRepository) Issue(ctx context.Context, ownerEmail string, kind models.KeyKind, processName *string, environment *models.Environment) (*models.APIKey, error) {
	kt, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}
	if kt.hasProcess && (processName == nil || environment == nil) {
		return nil, fmt.Errorf("process keys require process_name and environment")
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := auth.GenerateToken()
		if err != nil {
			return nil, fmt.Errorf("issue key: %w", err)
		}

		key, err := r.issueWithToken(ctx, kt, token, ownerEmail, processName, environment)
		if errors.Is(err, errTokenTaken) {
			telemetry.TokenCollisionRetriesTotal.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		return key, nil
	}

	return nil, fmt.Errorf("issue key for %s: %w", ownerEmail, ErrTokenCollision)
}

func (r *APIKeyRepository) issueWithToken(ctx context.Context, kt kindTable, token, ownerEmail string, processName *string, environment *models.Environment) (*models.APIKey, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	holderTable := "key_holders"
	if kt.kind == models.KeyKindAdmin {
		holderTable = "admin_key_holders"
	}

	// FOR UPDATE serializes issuance against a concurrent holder
	// deactivation: the deactivation blocks on the holder row until this
	// transaction commits, and its cascade then covers the new key row.
	var active bool
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT active FROM %s WHERE email = $1 FOR UPDATE`, holderTable),
		ownerEmail,
	).Scan(&active)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("holder %s: %w", ownerEmail, ErrHolderNotApproved)
	}
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("holder %s: %w", ownerEmail, ErrHolderNotApproved)
	}

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO api_key_tokens (token, issued_at) VALUES ($1, $2)`,
		token, now,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, errTokenTaken
		}
		return nil, err
	}

	key := &models.APIKey{
		Token:      token,
		OwnerEmail: ownerEmail,
		Kind:       kt.kind,
		Active:     true,
		CreatedAt:  now,
	}

	if kt.hasProcess {
		key.ProcessName = processName
		key.Environment = environment
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (token, owner_email, process_name, environment, active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, kt.table), token, ownerEmail, *processName, *environment, true, now)
	} else {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (token, owner_email, active, created_at)
			VALUES ($1, $2, $3, $4)
		`, kt.table), token, ownerEmail, true, now)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return key, nil
}

// GetByToken retrieves a key of any kind by its exact token. Returns
// ErrNotFound if no kind table has ever held the token.
func (r *APIKeyRepository) GetByToken(ctx context.Context, token string) (*models.APIKey, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_api_keys WHERE token = $1
		UNION ALL
		SELECT %s FROM process_api_keys WHERE token = $1
		UNION ALL
		SELECT %s FROM admin_api_keys WHERE token = $1
	`, kindTables[0].selectList(), kindTables[1].selectList(), kindTables[2].selectList())

	key, err := scanAPIKey(r.db.QueryRowContext(ctx, query, token))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("key: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// FindActiveAdminByToken resolves an admin credential. Only the admin kind
// table is consulted; an operational token is never accepted here. Returns
// ErrNotFound for unknown or inactive tokens.
func (r *APIKeyRepository) FindActiveAdminByToken(ctx context.Context, token string) (*models.APIKey, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM admin_api_keys WHERE token = $1 AND active = TRUE
	`, kindTables[2].selectList())

	key, err := scanAPIKey(r.db.QueryRowContext(ctx, query, token))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("admin key: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// FindActiveOperationalByToken resolves an operational credential against the
// user and process kind tables. An admin token is never accepted here.
// Returns ErrNotFound for unknown or inactive tokens.
func (r *APIKeyRepository) FindActiveOperationalByToken(ctx context.Context, token string) (*models.APIKey, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_api_keys WHERE token = $1 AND active = TRUE
		UNION ALL
		SELECT %s FROM process_api_keys WHERE token = $1 AND active = TRUE
	`, kindTables[0].selectList(), kindTables[1].selectList())

	key, err := scanAPIKey(r.db.QueryRowContext(ctx, query, token))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("operational key: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// DeactivateByToken deactivates the key with the given token, whatever its
// kind. Deactivating an already inactive key is a no-op that returns the key
// unchanged; an unknown token returns ErrNotFound.
func (r *APIKeyRepository) DeactivateByToken(ctx context.Context, token string) (*models.APIKey, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	for _, kt := range kindTables {
		query := fmt.Sprintf(`
			UPDATE %s
			SET active = FALSE,
			    deactivated_at = COALESCE(deactivated_at, $2)
			WHERE token = $1
			RETURNING %s
		`, kt.table, kt.selectList())

		key, err := scanAPIKey(tx.QueryRowContext(ctx, query, token, now))
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return key, nil
	}

	return nil, fmt.Errorf("key: %w", ErrNotFound)
}

// DeactivateAllForOwner deactivates every active operational key (user and
// process kinds) owned by email, in one transaction. Returns ErrNotFound when
// the owner has no active keys.
func (r *APIKeyRepository) DeactivateAllForOwner(ctx context.Context, email string) ([]*models.APIKey, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	deactivated := make([]*models.APIKey, 0)
	for _, table := range []string{"user_api_keys", "process_api_keys"} {
		keys, err := deactivateOwnerKeysTx(ctx, tx, table, email, now)
		if err != nil {
			return nil, fmt.Errorf("deactivate keys in %s: %w", table, err)
		}
		deactivated = append(deactivated, keys...)
	}

	if len(deactivated) == 0 {
		return nil, fmt.Errorf("active keys for %s: %w", email, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return deactivated, nil
}

// deactivateOwnerKeysTx flips every active key owned by email in one kind
// table and returns the affected rows. Shared by DeactivateAllForOwner and
// the holder deactivation cascade.
func deactivateOwnerKeysTx(ctx context.Context, tx *sql.Tx, table, email string, now time.Time) ([]*models.APIKey, error) {
	var kt kindTable
	for _, candidate := range kindTables {
		if candidate.table == table {
			kt = candidate
		}
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET active = FALSE,
		    deactivated_at = $2
		WHERE owner_email = $1 AND active = TRUE
		RETURNING %s
	`, kt.table, kt.selectList())

	rows, err := tx.QueryContext(ctx, query, email, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*models.APIKey, 0)
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// ListActive retrieves all active keys across every kind, newest first.
// An empty store yields an empty slice, not an error.
func (r *APIKeyRepository) ListActive(ctx context.Context) ([]*models.APIKey, error) {
	return r.listByState(ctx, true)
}

// ListDeactivated retrieves all deactivated keys across every kind, newest first.
func (r *APIKeyRepository) ListDeactivated(ctx context.Context) ([]*models.APIKey, error) {
	return r.listByState(ctx, false)
}

func (r *APIKeyRepository) listByState(ctx context.Context, active bool) ([]*models.APIKey, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_api_keys WHERE active = $1
		UNION ALL
		SELECT %s FROM process_api_keys WHERE active = $1
		UNION ALL
		SELECT %s FROM admin_api_keys WHERE active = $1
		ORDER BY created_at DESC
	`, kindTables[0].selectList(), kindTables[1].selectList(), kindTables[2].selectList())

	rows, err := r.db.QueryContext(ctx, query, active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*models.APIKey, 0)
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// ListActiveForOwner retrieves the active operational keys owned by email,
// newest first. An owner with no active keys yields an empty slice.
func (r *APIKeyRepository) ListActiveForOwner(ctx context.Context, email string) ([]*models.APIKey, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_api_keys WHERE owner_email = $1 AND active = TRUE
		UNION ALL
		SELECT %s FROM process_api_keys WHERE owner_email = $1 AND active = TRUE
		ORDER BY created_at DESC
	`, kindTables[0].selectList(), kindTables[1].selectList())

	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*models.APIKey, 0)
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}
