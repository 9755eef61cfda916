package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gate/internal/events"
)

// AuditService writes credential lifecycle events to the structured log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserRegistered, a.handleInfo)
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleInfo)
	a.dispatcher.Subscribe(events.EventTokenRefreshed, a.handleInfo)
	a.dispatcher.Subscribe(events.EventTokenRevoked, a.handleInfo)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
}

func (a *AuditService) handleInfo(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), eventFields(event)...)
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	a.logger.Warn(string(event.Type), eventFields(event)...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.Time("at", event.Timestamp),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	return fields
}
