package testutil

import (
	"time"

	"github.com/google/uuid"
)

// Fixtures provides stable ids and timestamps for test data
type Fixtures struct {
	MedicineID string
	BranchID   string
	UserID     string
	Now        time.Time
}

// NewFixtures creates a fixture set with fresh ids
func NewFixtures() *Fixtures {
	return &Fixtures{
		MedicineID: uuid.New().String(),
		BranchID:   uuid.New().String(),
		UserID:     uuid.New().String(),
		Now:        time.Now().UTC().Truncate(time.Second),
	}
}

// DaysFromNow returns a timestamp n days after the fixture clock
func (f *Fixtures) DaysFromNow(n int) time.Time {
	return f.Now.AddDate(0, 0, n)
}
