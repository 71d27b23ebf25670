package sqlstore

import "github.com/goliatone/go-issuer/core"

var (
	_ core.AttestationDefinitionStore = (*AttestationDefinitionStore)(nil)
	_ core.ParticipantStore           = (*ParticipantStore)(nil)
	_ core.CredentialDefinitionStore  = (*CredentialDefinitionStore)(nil)
	_ core.IssuanceProcessStore       = (*IssuanceProcessStore)(nil)
	_ core.CredentialStore            = (*CredentialStore)(nil)
	_ core.StoreProvider              = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory     = (*RepositoryFactory)(nil)
)
