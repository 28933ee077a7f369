// Package notification delivers user-facing billing notifications.
//
// The Dispatcher interface is the engine's outbound channel for renewal,
// failure, and cancellation messages. Delivery is best-effort by contract:
// the engine logs failures and moves on, so a broken email provider never
// blocks a billing transition.
//
// EmailDispatcher implements the interface over Postmark transactional
// email; MemoryDispatcher captures messages for tests; NopDispatcher
// discards them.
package notification
