package repository

import (
	"context"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository append-only notification log
type NotificationRepository interface {
	Append(ctx context.Context, notification *models.Notification) error
	ListAfter(ctx context.Context, afterSeq uint64, limit int) ([]*models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository instance
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Append allocates the next sequence from the locked counter row. Inside a
// caller transaction the lock is held until that transaction ends.
func (r *notificationRepository) Append(ctx context.Context, notification *models.Notification) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		seed := models.NotificationCounter{ID: models.NotificationCounterID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var counter models.NotificationCounter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&counter, models.NotificationCounterID).Error
		if err != nil {
			return err
		}

		counter.LastSeq++
		if err := tx.Model(&counter).Update("last_seq", counter.LastSeq).Error; err != nil {
			return err
		}

		notification.Seq = counter.LastSeq
		return tx.Create(notification).Error
	})
}

func (r *notificationRepository) ListAfter(ctx context.Context, afterSeq uint64, limit int) ([]*models.Notification, error) {
	var notifications []*models.Notification
	err := conn(ctx, r.db).
		Where("seq > ?", afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}
