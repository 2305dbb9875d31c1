package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRecord is a row with a string primary key and a unique natural key.
// Both methods tolerate a nil receiver.
type keyedRecord interface {
	rowID() *string
	naturalKey() string
}

func (r *credentialRecord) rowID() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func (r *credentialRecord) naturalKey() string {
	if r == nil {
		return ""
	}
	return r.StoreKey
}

func (r *callbackDeliveryRecord) rowID() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func (r *callbackDeliveryRecord) naturalKey() string {
	if r == nil {
		return ""
	}
	return r.DeliveryID
}

func keyedHandlers[T keyedRecord](identifier string, newRecord func() T) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			id := record.rowID()
			if id == nil {
				return uuid.Nil
			}
			return parseUUID(*id)
		},
		SetID: func(record T, id uuid.UUID) {
			if target := record.rowID(); target != nil {
				*target = id.String()
			}
		},
		GetIdentifier: func() string {
			return identifier
		},
		GetIdentifierValue: func(record T) string {
			return strings.TrimSpace(record.naturalKey())
		},
	}
}

func credentialHandlers() repository.ModelHandlers[*credentialRecord] {
	return keyedHandlers("store_key", func() *credentialRecord { return &credentialRecord{} })
}

func callbackDeliveryHandlers() repository.ModelHandlers[*callbackDeliveryRecord] {
	return keyedHandlers("delivery_id", func() *callbackDeliveryRecord { return &callbackDeliveryRecord{} })
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
