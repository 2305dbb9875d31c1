package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds every store over one bun database.
type RepositoryFactory struct {
	db *bun.DB

	credentialOptions     []CredentialStoreOption
	credentialStore       *CredentialStore
	callbackDeliveryStore *CallbackDeliveryStore
}

func NewRepositoryFactory(opts ...CredentialStoreOption) *RepositoryFactory {
	return &RepositoryFactory{credentialOptions: opts}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...CredentialStoreOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...CredentialStoreOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as
// a go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.credentialStore != nil && f.callbackDeliveryStore != nil {
		return nil
	}
	credentialStore, err := NewCredentialStore(f.db, f.credentialOptions...)
	if err != nil {
		return err
	}
	callbackDeliveryStore, err := NewCallbackDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.credentialStore = credentialStore
	f.callbackDeliveryStore = callbackDeliveryStore
	return nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) CredentialStore() *CredentialStore {
	if f == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) CallbackDeliveryStore() *CallbackDeliveryStore {
	if f == nil {
		return nil
	}
	return f.callbackDeliveryStore
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: persistence client is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
