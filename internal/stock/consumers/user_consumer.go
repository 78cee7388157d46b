package consumers

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// UserEventConsumer keeps the local user cache in sync with the user
// service. Movement reports join against this cache to show who booked
// a movement without a cross-service call.
type UserEventConsumer struct {
	consumer      *messaging.Consumer
	userCacheRepo *repository.UserCacheRepository
	logger        *logger.Logger
}

// NewUserEventConsumer creates a new user event consumer
func NewUserEventConsumer(
	rmq *messaging.RabbitMQ,
	userCacheRepo *repository.UserCacheRepository,
	log *logger.Logger,
) (*UserEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "stock-service.user-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		return nil, err
	}

	c := &UserEventConsumer{
		consumer:      consumer,
		userCacheRepo: userCacheRepo,
		logger:        log,
	}

	consumer.RegisterHandler(messaging.EventUserCreated, c.handleUserCreated)
	consumer.RegisterHandler(messaging.EventUserUpdated, c.handleUserUpdated)
	consumer.RegisterHandler(messaging.EventUserDeleted, c.handleUserDeleted)

	return c, nil
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *UserEventConsumer) handleUserCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Str("name", data.FullName()).
		Msg("received user created event")

	ctx = tenant.WithTenantContext(ctx, data.TenantID, data.TenantSlug)

	return c.userCacheRepo.Set(ctx, &repository.CachedUser{
		UserID:    data.UserID,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Email:     &data.Email,
		RoleName:  &data.RoleName,
		TenantID:  data.TenantID,
	})
}

func (c *UserEventConsumer) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user updated event")

	ctx = tenant.WithTenantContext(ctx, data.TenantID, data.TenantSlug)

	existing, _ := c.userCacheRepo.Get(ctx, data.UserID)
	if existing == nil {
		return nil // not in cache, nothing to refresh
	}

	if firstName, ok := data.Fields["first_name"].(map[string]interface{}); ok {
		if newName, ok := firstName["to"].(string); ok {
			existing.FirstName = newName
		}
	}
	if lastName, ok := data.Fields["last_name"].(map[string]interface{}); ok {
		if newName, ok := lastName["to"].(string); ok {
			existing.LastName = newName
		}
	}
	if email, ok := data.Fields["email"].(map[string]interface{}); ok {
		if newEmail, ok := email["to"].(string); ok {
			existing.Email = &newEmail
		}
	}

	return c.userCacheRepo.Set(ctx, existing)
}

func (c *UserEventConsumer) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user deleted event")

	ctx = tenant.WithTenantContext(ctx, data.TenantID, data.TenantSlug)

	return c.userCacheRepo.Delete(ctx, data.UserID)
}
