package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/errors"
)

// fakeTxRunner runs the function directly. The fakes ignore the tx handle,
// so nil is fine.
type fakeTxRunner struct{}

func (f *fakeTxRunner) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

// fakeBatchStore is an in-memory BatchStore with the same conditional
// decrement guard as the real repository. The interfere hook runs before
// each decrement and can mutate quantities like a concurrent writer would.
type fakeBatchStore struct {
	mu        sync.Mutex
	batches   []*repository.StockBatch
	created   []*repository.StockBatch
	interfere func(store *fakeBatchStore, batchID string)
}

func newFakeBatchStore(batches ...*repository.StockBatch) *fakeBatchStore {
	f := &fakeBatchStore{}
	for _, b := range batches {
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		if b.InitialQuantity == 0 {
			b.InitialQuantity = b.Quantity
		}
		f.batches = append(f.batches, b)
	}
	return f
}

func (f *fakeBatchStore) DB() sqlx.ExtContext { return nil }

func (f *fakeBatchStore) find(id string) *repository.StockBatch {
	for _, b := range f.batches {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (f *fakeBatchStore) Create(ctx context.Context, q sqlx.ExtContext, b *repository.StockBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.InitialQuantity = b.Quantity
	f.batches = append(f.batches, b)
	f.created = append(f.created, b)
	return nil
}

func (f *fakeBatchStore) GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*repository.StockBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b := f.find(id); b != nil {
		copied := *b
		return &copied, nil
	}
	return nil, errors.NotFound("batch")
}

func (f *fakeBatchStore) ListFEFO(ctx context.Context, q sqlx.ExtContext, medicineID, branchID string) ([]*repository.StockBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*repository.StockBatch
	for _, b := range f.batches {
		if b.MedicineID == medicineID && b.BranchID == branchID {
			copied := *b
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ExpirationDate.Equal(result[j].ExpirationDate) {
			return result[i].ID < result[j].ID
		}
		return result[i].ExpirationDate.Before(result[j].ExpirationDate)
	})
	return result, nil
}

func (f *fakeBatchStore) ReduceQuantity(ctx context.Context, q sqlx.ExtContext, id string, delta, expectedMin int) (bool, error) {
	if delta <= 0 {
		return false, errors.InvalidQuantity("reduction must be positive")
	}
	if expectedMin < delta {
		expectedMin = delta
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.interfere != nil {
		hook := f.interfere
		f.interfere = nil
		hook(f, id)
	}

	b := f.find(id)
	if b == nil || b.Quantity < expectedMin {
		return false, nil
	}
	b.Quantity -= delta
	return true, nil
}

func (f *fakeBatchStore) AddQuantity(ctx context.Context, q sqlx.ExtContext, id string, delta int) (bool, error) {
	if delta <= 0 {
		return false, errors.InvalidQuantity("addition must be positive")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.find(id)
	if b == nil {
		return false, nil
	}
	b.Quantity += delta
	return true, nil
}

func (f *fakeBatchStore) CountForMedicine(ctx context.Context, q sqlx.ExtContext, medicineID, branchID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, b := range f.batches {
		if b.MedicineID == medicineID && b.BranchID == branchID {
			count++
		}
	}
	return count, nil
}

func (f *fakeBatchStore) TotalAvailable(ctx context.Context, q sqlx.ExtContext, medicineID, branchID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, b := range f.batches {
		if b.MedicineID == medicineID && b.BranchID == branchID {
			total += b.Available()
		}
	}
	return total, nil
}

func (f *fakeBatchStore) quantity(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b := f.find(id); b != nil {
		return b.Quantity
	}
	return -1
}

// fakeConsumptionLog records appended audit rows
type fakeConsumptionLog struct {
	mu      sync.Mutex
	records []*repository.StockConsumption
}

func (f *fakeConsumptionLog) Insert(ctx context.Context, q sqlx.ExtContext, c *repository.StockConsumption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	f.records = append(f.records, c)
	return nil
}

// fakeMedicineCatalog resolves medicines from a fixed map
type fakeMedicineCatalog struct {
	medicines map[string]*repository.Medicine
}

func newFakeMedicineCatalog(medicines ...*repository.Medicine) *fakeMedicineCatalog {
	f := &fakeMedicineCatalog{medicines: make(map[string]*repository.Medicine)}
	for _, m := range medicines {
		f.medicines[m.ID] = m
	}
	return f
}

func (f *fakeMedicineCatalog) GetByID(ctx context.Context, id string) (*repository.Medicine, error) {
	if m, ok := f.medicines[id]; ok {
		return m, nil
	}
	return nil, errors.NotFound("medicine")
}

// fakeNotificationStore records upserts and inserts separately
type fakeNotificationStore struct {
	mu       sync.Mutex
	upserts  []*repository.Notification
	inserts  []*repository.Notification
	failWith error
}

func (f *fakeNotificationStore) Upsert(ctx context.Context, n *repository.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.upserts = append(f.upserts, n)
	return nil
}

func (f *fakeNotificationStore) Insert(ctx context.Context, n *repository.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.inserts = append(f.inserts, n)
	return nil
}

// fakeArchiveStore is an in-memory ArchiveStore
type fakeArchiveStore struct {
	mu       sync.Mutex
	portions map[string]*repository.ArchivedPortion
}

func newFakeArchiveStore() *fakeArchiveStore {
	return &fakeArchiveStore{portions: make(map[string]*repository.ArchivedPortion)}
}

func (f *fakeArchiveStore) Insert(ctx context.Context, q sqlx.ExtContext, a *repository.ArchivedPortion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	copied := *a
	f.portions[a.ID] = &copied
	return nil
}

func (f *fakeArchiveStore) GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*repository.ArchivedPortion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.portions[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, errors.NotFound("archived portion")
}

func (f *fakeArchiveStore) Delete(ctx context.Context, q sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.portions[id]; !ok {
		return errors.NotFound("archived portion")
	}
	delete(f.portions, id)
	return nil
}

// fakeTransferStore is an in-memory TransferStore with the same pending-only
// transition guard as the real repository
type fakeTransferStore struct {
	mu       sync.Mutex
	requests map[string]*repository.TransferRequest
}

func newFakeTransferStore() *fakeTransferStore {
	return &fakeTransferStore{requests: make(map[string]*repository.TransferRequest)}
}

func (f *fakeTransferStore) Create(ctx context.Context, t *repository.TransferRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.Status = repository.StatusPending
	copied := *t
	f.requests[t.ID] = &copied
	return nil
}

func (f *fakeTransferStore) GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*repository.TransferRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.requests[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, errors.NotFound("transfer request")
}

func (f *fakeTransferStore) MarkApproved(ctx context.Context, q sqlx.ExtContext, id, confirmedBy string, linkedBatchID *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.requests[id]
	if !ok || t.Status != repository.StatusPending {
		return false, nil
	}
	t.Status = repository.StatusApproved
	t.ConfirmedBy = &confirmedBy
	t.LinkedBatchID = linkedBatchID
	return true, nil
}

func (f *fakeTransferStore) MarkRejected(ctx context.Context, q sqlx.ExtContext, id, confirmedBy string, reason *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.requests[id]
	if !ok || t.Status != repository.StatusPending {
		return false, nil
	}
	t.Status = repository.StatusRejected
	t.ConfirmedBy = &confirmedBy
	t.RejectReason = reason
	return true, nil
}

func (f *fakeTransferStore) ListPending(ctx context.Context, toBranchID string) ([]*repository.TransferRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*repository.TransferRequest
	for _, t := range f.requests {
		if t.ToBranchID == toBranchID && t.Status == repository.StatusPending {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (f *fakeTransferStore) ListHistory(ctx context.Context, branchID string) ([]*repository.TransferRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*repository.TransferRequest
	for _, t := range f.requests {
		if (t.FromBranchID == branchID || t.ToBranchID == branchID) && t.Status != repository.StatusPending {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (f *fakeTransferStore) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.requests[id]; ok {
		return t.Status
	}
	return ""
}
