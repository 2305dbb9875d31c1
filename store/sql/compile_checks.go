package sqlstore

import (
	"github.com/goliatone/go-commerce/core"
	"github.com/goliatone/go-commerce/webhooks"
)

var (
	_ core.CredentialStore    = (*CredentialStore)(nil)
	_ core.CredentialStore    = (*CachedCredentialStore)(nil)
	_ webhooks.DeliveryLedger = (*CallbackDeliveryStore)(nil)
)
