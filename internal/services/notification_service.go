package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/metrics"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"
)

// EventPublisher external fan-out of committed notifications
type EventPublisher interface {
	PublishNotification(n *models.Notification) error
}

// NotificationService append-only notification log with live subscribers.
// Entries are written inside the caller's transaction and fanned out after commit.
type NotificationService struct {
	repo      repository.NotificationRepository
	tx        repository.TxManager
	publisher EventPublisher
	logger    *logrus.Logger

	mu          sync.RWMutex
	subscribers map[uint64]chan *models.Notification
	nextID      uint64
}

// NewNotificationService creates a NotificationService; publisher may be nil
func NewNotificationService(repo repository.NotificationRepository, tx repository.TxManager, publisher EventPublisher, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		repo:        repo,
		tx:          tx,
		publisher:   publisher,
		logger:      logger,
		subscribers: make(map[uint64]chan *models.Notification),
	}
}

// SetPublisher attaches the external publisher once the transport is connected
func (s *NotificationService) SetPublisher(publisher EventPublisher) {
	s.mu.Lock()
	s.publisher = publisher
	s.mu.Unlock()
}

// Emit appends a notification. Callers pass the transaction context of the
// state change the notification describes.
func (s *NotificationService) Emit(ctx context.Context, name models.NotificationName, emitter common.Address, args map[string]interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal %s args: %w", name, err)
	}

	n := &models.Notification{
		Name:    name,
		Emitter: emitter.Hex(),
		Args:    string(data),
	}
	if err := s.repo.Append(ctx, n); err != nil {
		return fmt.Errorf("append %s notification: %w", name, err)
	}

	s.tx.AfterCommit(ctx, func() { s.dispatch(n) })
	return nil
}

// List committed notifications with sequence numbers greater than after
func (s *NotificationService) List(ctx context.Context, after uint64, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAfter(ctx, after, limit)
}

// Subscribe registers a live subscriber. A subscriber that falls more than
// buffer entries behind misses notifications; it can catch up with List.
func (s *NotificationService) Subscribe(buffer int) (<-chan *models.Notification, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan *models.Notification, buffer)

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subscribers[id] = ch
	count := len(s.subscribers)
	s.mu.Unlock()
	metrics.NotificationSubscribers.Set(float64(count))

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			count := len(s.subscribers)
			close(ch)
			s.mu.Unlock()
			metrics.NotificationSubscribers.Set(float64(count))
		})
	}
}

func (s *NotificationService) dispatch(n *models.Notification) {
	metrics.NotificationsEmitted.WithLabelValues(string(n.Name)).Inc()

	s.mu.RLock()
	publisher := s.publisher
	for _, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			metrics.NotificationsDropped.Inc()
		}
	}
	s.mu.RUnlock()

	if publisher != nil {
		if err := publisher.PublishNotification(n); err != nil {
			s.logger.WithFields(logrus.Fields{
				"seq":   n.Seq,
				"name":  n.Name,
				"error": err,
			}).Warn("Failed to publish notification")
		}
	}
}
