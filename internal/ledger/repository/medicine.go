package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/medledger-backend/pkg/database"
	"github.com/medledger/medledger-backend/pkg/errors"
)

// Medicine represents a catalog entry. Immutable once referenced by a batch.
type Medicine struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MedicineRepository handles medicine catalog persistence
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// Create inserts a new medicine. The (name, category) pair is unique
// case/whitespace-insensitively; concurrent duplicates surface as CONFLICT
// through the unique index rather than a check-then-insert race.
func (r *MedicineRepository) Create(ctx context.Context, m *Medicine) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medicines (id, name, category)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query, m.ID, m.Name, m.Category).Scan(&m.CreatedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// GetByID gets a medicine by ID
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*Medicine, error) {
	var m Medicine
	query := `SELECT * FROM medicines WHERE id = $1`
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &m, nil
}

// FindByNameCategory looks a medicine up by its normalized (name, category) pair.
// Returns nil without error when no match exists.
func (r *MedicineRepository) FindByNameCategory(ctx context.Context, name, category string) (*Medicine, error) {
	var m Medicine
	query := `
		SELECT * FROM medicines
		WHERE lower(btrim(name)) = lower(btrim($1))
		  AND lower(btrim(category)) = lower(btrim($2))
	`
	if err := r.db.GetContext(ctx, &m, query, name, category); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// List lists all medicines ordered by name
func (r *MedicineRepository) List(ctx context.Context) ([]*Medicine, error) {
	var medicines []*Medicine
	query := `SELECT * FROM medicines ORDER BY name, category`
	if err := r.db.SelectContext(ctx, &medicines, query); err != nil {
		return nil, err
	}
	return medicines, nil
}
