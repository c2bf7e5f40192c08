package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Stock ledger events
	EventStockReceived  = "ledger.stock.received"
	EventStockDispensed = "ledger.stock.dispensed"
	EventStockArchived  = "ledger.stock.archived"
	EventStockRestored  = "ledger.stock.restored"

	// Transfer events
	EventTransferRequested = "ledger.transfer.requested"
	EventTransferApproved  = "ledger.transfer.approved"
	EventTransferRejected  = "ledger.transfer.rejected"

	// Notification events
	EventLowStockDetected = "ledger.notification.low_stock"

	// Directory events (consumed, produced by the admin service)
	EventDirectoryUserUpdated   = "directory.user.updated"
	EventDirectoryBranchUpdated = "directory.branch.updated"
)

// Exchange names
const (
	ExchangeLedgerEvents    = "medledger.events"
	ExchangeDirectoryEvents = "directory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}

// Stock events

// StockReceivedEvent is published when a batch is stocked in
type StockReceivedEvent struct {
	BatchID    string    `json:"batch_id"`
	MedicineID string    `json:"medicine_id"`
	BranchID   string    `json:"branch_id"`
	Quantity   int       `json:"quantity"`
	Expiration time.Time `json:"expiration_date"`
	CreatedBy  string    `json:"created_by"`
}

// StockDispensedEvent is published when stock is consumed
type StockDispensedEvent struct {
	MedicineID string         `json:"medicine_id"`
	BranchID   string         `json:"branch_id"`
	Quantity   int            `json:"quantity"`
	Batches    map[string]int `json:"batches"` // batch id -> quantity taken
	Dispenser  string         `json:"dispenser"`
}

// StockArchivedEvent is published when a portion of a batch is archived
type StockArchivedEvent struct {
	ArchiveID string `json:"archive_id"`
	BatchID   string `json:"batch_id"`
	BranchID  string `json:"branch_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

// Transfer events

// TransferRequestedEvent is published when a branch requests stock
type TransferRequestedEvent struct {
	RequestID  string `json:"request_id"`
	FromBranch string `json:"from_branch_id"`
	ToBranch   string `json:"to_branch_id"`
	MedicineID string `json:"medicine_id"`
	Quantity   int    `json:"quantity_requested"`
	Requester  string `json:"requested_by"`
}

// TransferResolvedEvent is published when a request is approved or rejected
type TransferResolvedEvent struct {
	RequestID  string `json:"request_id"`
	Status     string `json:"status"`
	FromBranch string `json:"from_branch_id"`
	ToBranch   string `json:"to_branch_id"`
	MedicineID string `json:"medicine_id"`
	Quantity   int    `json:"quantity_requested"`
	Confirmer  string `json:"confirmed_by"`
	Reason     string `json:"reason,omitempty"`
}

// LowStockEvent is published when availability drops to the threshold
type LowStockEvent struct {
	BranchID   string `json:"branch_id"`
	MedicineID string `json:"medicine_id"`
	Available  int    `json:"available"`
	Threshold  int    `json:"threshold"`
}

// Directory events

// DirectoryUserEvent carries a user display-name update
type DirectoryUserEvent struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Deleted  bool   `json:"deleted,omitempty"`
}

// DirectoryBranchEvent carries a branch display-name update
type DirectoryBranchEvent struct {
	BranchID string `json:"branch_id"`
	Name     string `json:"name"`
	Deleted  bool   `json:"deleted,omitempty"`
}
