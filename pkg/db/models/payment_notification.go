package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
)

// PaymentNotification is one entry of an intent's append-only notification
// log. IntentID is NULL for orphan notifications so they remain available for
// forensic replay even when no local intent matched.
type PaymentNotification struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntentID       *uuid.UUID             `gorm:"column:intent_id;type:uuid;index"`
	Type           enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	ProviderDataID string                 `gorm:"column:provider_data_id;not null;index"`
	RequestID      string                 `gorm:"column:request_id"`
	Payload        json.RawMessage        `gorm:"column:payload;type:jsonb"`
	Applied        bool                   `gorm:"column:applied;not null;default:false"`
	ReceivedAt     time.Time              `gorm:"column:received_at;autoCreateTime"`
}
