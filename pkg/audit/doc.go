// Package audit records subscription lifecycle events and credit mutations
// for compliance logging.
//
// The Recorder interface is consumed by the billing engine and the credit
// ledger; both treat recording as best-effort so a slow or unavailable audit
// backend never blocks a billing transition.
//
// Storage backends:
//
//   - MemoryStorage for tests and development
//   - MongoStorage for a durable append-only trail
//   - an internal async buffer (WithAsyncBuffer) that keeps writes off the
//     transition path, dropping events with a warning when the buffer fills
//
// Usage:
//
//	storage := audit.NewMongoStorage(db.Collection("audit_events"))
//	recorder := audit.NewRecorder(storage, audit.WithAsyncBuffer(1000))
//	_ = recorder.Record(ctx, "subscription.renewed",
//	    audit.WithSubscription(subID),
//	    audit.WithUser(userID),
//	    audit.WithDetail("next_billing_date", next),
//	)
package audit
