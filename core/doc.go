// Package core contains the issuer domain entities, store and collaborator
// contracts, and the issuance orchestration: attestation evaluation, the
// issuance process state machine, revocation through status lists and the
// credential watchdog. Storage, transport and token adapters depend on this
// package; core does not depend on them.
package core
