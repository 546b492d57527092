package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncMessageRecord is the transactional outbox row behind triggerSync:
// reconciliation mutations write records inside their own DB transaction and
// the outbox dispatcher publishes to Pub/Sub after commit.
type SyncMessageRecord struct {
	ID            int               `gorm:"primary_key;index:idx_sync_dispatch,priority:3" json:"id"`
	BusinessId    string            `gorm:"size:64;not null;index" json:"business_id"`
	OccurredAt    time.Time         `gorm:"index;not null" json:"occurred_at"`
	ReferenceId   int               `json:"reference_id"`
	ReferenceType SyncReferenceType `gorm:"type:enum('SC','IS','SD','RH','PR')" json:"reference_type"`
	Action        SyncAction        `gorm:"type:enum('C','U','D')" json:"action"`
	OldObj        []byte            `gorm:"type:blob" json:"old_obj"`
	NewObj        []byte            `gorm:"type:blob" json:"new_obj"`
	IsProcessed   bool              `gorm:"index;not null" json:"is_processed"`
	// Publish happens after commit via the outbox dispatcher.
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_sync_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_sync_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToSyncMessage(record SyncMessageRecord) config.SyncMessage {
	return config.SyncMessage{
		ID:            record.ID,
		BusinessId:    record.BusinessId,
		OccurredAt:    record.OccurredAt,
		ReferenceId:   record.ReferenceId,
		ReferenceType: string(record.ReferenceType),
		Action:        string(record.Action),
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}

// PublishToSync writes the outbox record inside the caller's DB transaction
// but does NOT publish to Pub/Sub. Publishing is performed asynchronously by
// the outbox dispatcher after commit.
func PublishToSync(ctx context.Context, db *gorm.DB, businessId string, occurredAt time.Time, refId int, refType SyncReferenceType, obj interface{}, oldObj interface{}, action SyncAction) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if action == SyncActionCreate || action == SyncActionUpdate {
		objInByte, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}
	if action == SyncActionUpdate || action == SyncActionDelete {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := SyncMessageRecord{
		BusinessId:    businessId,
		OccurredAt:    occurredAt,
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		NewObj:        objInByte,
		OldObj:        oldObjInByte,
		IsProcessed:   false,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return db.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
