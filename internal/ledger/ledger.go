// Package ledger implements the tamper-evident audit ledger.
//
// Every state-changing action in the platform is recorded as an immutable
// AuditEntry. Entries form one hash chain per tenant: each entry's HashChain
// is the SHA-256 digest of its identity fields plus the previous entry's
// digest, with the first entry anchored by the GenesisSentinel. Sequence
// numbers are assigned per tenant, gap-free, starting at 1, under a
// per-tenant lock so concurrent writers can never fork a chain.
//
// Two implementations of the Store interface are provided:
//   - MemoryStore: in-process, for testing and development.
//   - PostgresStore: durable, for production use.
//
// Verify is a pure function over an ordered entry slice and reports every
// violation it finds (hash mismatch, chain break, sequence gap) without
// attempting repair.
package ledger
