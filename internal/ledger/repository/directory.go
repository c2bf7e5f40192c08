package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/medledger/medledger-backend/pkg/database"
)

// DirectoryRepository caches user and branch display names fed by directory
// events. Read projections use it for enrichment only; ledger correctness
// never depends on it.
type DirectoryRepository struct {
	db *database.DB
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *database.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// SetUser creates or updates a cached user name
func (r *DirectoryRepository) SetUser(ctx context.Context, userID, fullName string) error {
	query := `
		INSERT INTO directory_users (user_id, full_name, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id)
		DO UPDATE SET full_name = $2, updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, userID, fullName)
	return err
}

// DeleteUser removes a cached user name
func (r *DirectoryRepository) DeleteUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM directory_users WHERE user_id = $1`, userID)
	return err
}

// SetBranch creates or updates a cached branch name
func (r *DirectoryRepository) SetBranch(ctx context.Context, branchID, name string) error {
	query := `
		INSERT INTO directory_branches (branch_id, name, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (branch_id)
		DO UPDATE SET name = $2, updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, branchID, name)
	return err
}

// DeleteBranch removes a cached branch name
func (r *DirectoryRepository) DeleteBranch(ctx context.Context, branchID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM directory_branches WHERE branch_id = $1`, branchID)
	return err
}

// UserNames resolves a set of user IDs to display names. Unknown IDs are
// simply absent from the result.
func (r *DirectoryRepository) UserNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT user_id, full_name FROM directory_users WHERE user_id = ANY($1)`,
		pq.Array(userIDs),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// BranchName resolves a branch ID to its display name, or "" when unknown
func (r *DirectoryRepository) BranchName(ctx context.Context, branchID string) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name,
		`SELECT name FROM directory_branches WHERE branch_id = $1`, branchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return name, nil
}
