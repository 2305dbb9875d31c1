package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:commerce_credentials,alias:ccr"`

	ID            string     `bun:"id,pk"`
	StoreKey      string     `bun:"store_key,notnull"`
	Payload       []byte     `bun:"payload,notnull"`
	PayloadFormat string     `bun:"payload_format,notnull"`
	TokenURI      string     `bun:"token_uri,notnull"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type callbackDeliveryRecord struct {
	bun.BaseModel `bun:"table:commerce_callback_deliveries,alias:ccd"`

	ID            string     `bun:"id,pk"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	EventType     string     `bun:"event_type,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	LastError     string     `bun:"last_error,notnull"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
