package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-issuer/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	attestationDefinitionStore *AttestationDefinitionStore
	participantStore           *ParticipantStore
	credentialDefinitionStore  core.CredentialDefinitionStore
	issuanceProcessStore       *IssuanceProcessStore
	credentialStore            *CredentialStore
	transactionContext         *TransactionContext
}

type FactoryOption func(*RepositoryFactory)

// WithCredentialDefinitionCache fronts the credential definition store with
// a read-through cache.
func WithCredentialDefinitionCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.participantStore != nil && f.issuanceProcessStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) AttestationDefinitionStore() core.AttestationDefinitionStore {
	if f == nil {
		return nil
	}
	return f.attestationDefinitionStore
}

func (f *RepositoryFactory) ParticipantStore() core.ParticipantStore {
	if f == nil {
		return nil
	}
	return f.participantStore
}

func (f *RepositoryFactory) CredentialDefinitionStore() core.CredentialDefinitionStore {
	if f == nil {
		return nil
	}
	return f.credentialDefinitionStore
}

func (f *RepositoryFactory) IssuanceProcessStore() core.IssuanceProcessStore {
	if f == nil {
		return nil
	}
	return f.issuanceProcessStore
}

func (f *RepositoryFactory) CredentialStore() core.CredentialStore {
	if f == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) TransactionContext() core.TransactionContext {
	if f == nil {
		return nil
	}
	return f.transactionContext
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	attestationDefinitionStore, err := NewAttestationDefinitionStore(f.db)
	if err != nil {
		return err
	}
	participantStore, err := NewParticipantStore(f.db)
	if err != nil {
		return err
	}
	credentialDefinitionStore, err := NewCredentialDefinitionStore(f.db)
	if err != nil {
		return err
	}
	issuanceProcessStore, err := NewIssuanceProcessStore(f.db)
	if err != nil {
		return err
	}
	credentialStore, err := NewCredentialStore(f.db)
	if err != nil {
		return err
	}

	f.attestationDefinitionStore = attestationDefinitionStore
	f.participantStore = participantStore
	f.credentialDefinitionStore = credentialDefinitionStore
	if f.cache != nil {
		cached, err := NewCachedCredentialDefinitionStore(credentialDefinitionStore, f.cache)
		if err != nil {
			return err
		}
		f.credentialDefinitionStore = cached
	}
	f.issuanceProcessStore = issuanceProcessStore
	f.credentialStore = credentialStore
	f.transactionContext = NewTransactionContext(f.db)
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
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
