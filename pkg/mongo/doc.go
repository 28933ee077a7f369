// Package mongo manages the MongoDB client used for the audit trail.
// Configuration is environment-driven and connections are retried on
// startup, which keeps the service tolerant of Atlas transient failures
// and container start ordering.
//
// # Usage
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//
//	client, err := mongo.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Disconnect(ctx)
//
// NewWithDatabase scopes the client to one database for callers that only
// touch a single collection set, as the audit storage does.
package mongo
