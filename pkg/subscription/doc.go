// Package subscription implements the paid membership lifecycle: plan
// selection, billing-cycle progression, upgrades, pauses, cancellations,
// and time-driven expiration.
//
// # Architecture
//
// The Engine is the single code path for every lifecycle transition,
// whether triggered by a user-facing call or by the background Sweeper:
//
//   - Engine: validates transitions against the lifecycle table, computes
//     billing dates, charges the payment gateway, adjusts the credit
//     ledger, and emits audit events and notifications.
//   - Sweeper: the time-triggered reconciler that renews or expires
//     subscriptions whose next billing date has passed.
//   - Store: persistence contract with compare-and-swap semantics; the
//     subscription version is the optimistic concurrency token.
//   - Plan / PlanSource: read-only reference data loaded at construction.
//
// # State machine
//
// A subscription is created not_active, activates on the first successful
// charge, and then moves between active, paused, cancelled, and expired.
// Cancelled and expired are terminal. Transition legality lives in a single
// table (lifecycle.go); guards and side effects live on the engine methods.
//
// # Billing policy
//
// Whole-cycle billing only: upgrades and resumes restart a full cycle from
// now, renewals extend one cycle from the previous due date, and no
// partial-cycle proration is attempted. A declined or timed-out renewal
// charge expires the subscription immediately; grace-period retries can be
// layered above this package by re-invoking Renew.
//
// # Concurrency
//
// Every transition commits through a single conditional write. User-driven
// calls surface ErrConcurrentModification to the caller; sweeper-driven
// renewals retry a bounded number of times and otherwise skip the item as
// benign, so overlapping sweeps converge without double-charging.
package subscription
