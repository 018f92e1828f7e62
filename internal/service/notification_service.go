package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/events"
)

// EventForwarder relays events to an external channel.
type EventForwarder interface {
	Forward(ctx context.Context, event events.Event) (int64, error)
}

// NotificationService informs clients and technicians about ticket
// progress. Delivery is best effort: failures are logged and never reach
// the transition that emitted the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	forwarder  EventForwarder
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. forwarder may be nil.
func NewNotificationService(dispatcher events.Dispatcher, forwarder EventForwarder, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		forwarder:  forwarder,
		logger:     loggerOrNop(logger),
		cfg:        cfg,
	}
}

// Topics lists the events that trigger a notification.
func (n *NotificationService) Topics() []events.EventType {
	return []events.EventType{
		events.EventTicketCreated,
		events.EventTicketAssigned,
		events.EventServiceItemsProposed,
		events.EventApprovalDecided,
		events.EventTicketCompleted,
		events.EventTicketCanceled,
	}
}

// RegisterHandlers subscribes Handle synchronously to every topic.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, topic := range n.Topics() {
		n.dispatcher.Subscribe(topic, n.Handle)
	}
}

// Handle delivers one event.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	n.logger.Info("notification",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))

	switch event.Type {
	case events.EventTicketCreated, events.EventServiceItemsProposed, events.EventApprovalDecided, events.EventTicketCompleted:
		n.sendEmailNotificationStub(ctx, event)
	}

	if n.forwarder == nil {
		return nil
	}
	receivers, err := n.forwarder.Forward(ctx, event)
	if err != nil {
		return err
	}
	n.logger.Debug("event forwarded", zap.String("event_id", event.ID), zap.Int64("receivers", receivers))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
