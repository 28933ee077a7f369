// Package logger provides a context-aware wrapper around Go's slog package
// adding functional options for configuration, helper attribute constructors,
// and transparent injection of values stored in context.Context.
//
// The package standardises structured logging across the billing services by
// exposing a single factory, New, that creates a *slog.Logger configured by a
// set of Option functions. These options allow you to:
//
//   - Select an output format (text or json)
//   - Set the minimum log level
//   - Supply default slog.Attr values applied to every record
//   - Register ContextExtractor callbacks that inject attributes pulled from
//     a context value (for example a request id) every time Handle is invoked.
//
// # Architecture
//
// New determines the concrete slog.Handler implementation, slog.NewTextHandler
// or slog.NewJSONHandler, based on the configured Format. It then wraps the
// handler with LogHandlerDecorator which executes any registered
// ContextExtractor callbacks before delegating to the underlying handler.
//
// Helper constructors such as Error, UserID, SubscriptionID and PlanID live
// in attr.go and keep attribute naming consistent across the codebase.
//
// # Usage
//
//	import "github.com/dmitrymomot/subkit/pkg/logger"
//
//	func main() {
//	    log := logger.New(
//	        logger.WithProduction("billing"),
//	        logger.WithContextValue("request_id", ctxKeyRequestID),
//	    )
//	    logger.SetAsDefault(log)
//
//	    log.InfoContext(ctx, "subscription renewed",
//	        logger.SubscriptionID(sub.ID),
//	        logger.PlanID(sub.PlanID),
//	    )
//	}
//
// # Error Handling
//
// Helper functions Error and Errors produce attributes only when the supplied
// error value is non-nil allowing calls like:
//
//	log.Info("operation succeeded", logger.Error(err))
//
// without an additional nil check.
package logger
