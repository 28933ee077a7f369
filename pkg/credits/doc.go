// Package credits tracks per-user credit balances tied to subscription plan
// allowances and ad-hoc credit purchases.
//
// The Ledger is the only mutation surface: Grant adds credits, Debit removes
// them and fails with ErrInsufficientCredits rather than ever driving a
// balance negative. The non-negative invariant is enforced atomically by the
// BalanceStore's Apply primitive, so it holds under any interleaving of
// concurrent grants and debits. Every mutation is appended to the audit
// trail with its delta and reason.
//
// Stores: MemoryStore for tests, PostgresStore for production, and an
// optional CachedStore redis decorator for read-heavy balance checks.
package credits
