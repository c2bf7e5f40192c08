package consumers

import (
	"context"

	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/pkg/logger"
	"github.com/medledger/medledger-backend/pkg/messaging"
)

// DirectoryEventConsumer keeps the local directory cache of user and branch
// display names in sync with the admin service's events.
type DirectoryEventConsumer struct {
	consumer  *messaging.Consumer
	directory *repository.DirectoryRepository
	logger    *logger.Logger
}

// NewDirectoryEventConsumer creates a new directory event consumer
func NewDirectoryEventConsumer(rmq *messaging.RabbitMQ, directory *repository.DirectoryRepository, log *logger.Logger) (*DirectoryEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "ledger-service.directory-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeDirectoryEvents, "directory.#"); err != nil {
		return nil, err
	}

	c := &DirectoryEventConsumer{
		consumer:  consumer,
		directory: directory,
		logger:    log,
	}

	consumer.RegisterHandler(messaging.EventDirectoryUserUpdated, c.handleUserUpdated)
	consumer.RegisterHandler(messaging.EventDirectoryBranchUpdated, c.handleBranchUpdated)

	return c, nil
}

// Start starts consuming messages
func (c *DirectoryEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *DirectoryEventConsumer) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.DirectoryUserEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Bool("deleted", data.Deleted).
		Msg("received directory user event")

	if data.Deleted {
		return c.directory.DeleteUser(ctx, data.UserID)
	}
	return c.directory.SetUser(ctx, data.UserID, data.FullName)
}

func (c *DirectoryEventConsumer) handleBranchUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.DirectoryBranchEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("branch_id", data.BranchID).
		Bool("deleted", data.Deleted).
		Msg("received directory branch event")

	if data.Deleted {
		return c.directory.DeleteBranch(ctx, data.BranchID)
	}
	return c.directory.SetBranch(ctx, data.BranchID, data.Name)
}
