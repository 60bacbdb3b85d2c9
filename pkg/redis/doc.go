// Package redis connects go-redis clients from REDIS_URL style settings.
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	manifests := cache.NewRedis[*bundle.Manifest](client)
//	app := trellis.New(
//	    trellis.WithHealthChecks(trellis.WithReadinessCheck("redis", redis.Healthcheck(client))),
//	    trellis.WithShutdownHook(redis.Shutdown(client)),
//	)
//
// Both redis:// and rediss:// (TLS) URLs are accepted.
package redis
