// Package redis connects the go-redis client with startup retries and a
// health probe. The billing engine uses it for the read-through credit
// balance cache.
//
// # Usage
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Connect fails only after the configured retry budget or the connect
// timeout is exhausted, whichever comes first. Callers that can run without
// redis should treat the error as a degraded-mode signal rather than fatal.
package redis
