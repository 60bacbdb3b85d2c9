// Package health provides liveness and readiness probe handlers.
//
// Readiness runs named checks concurrently under one timeout (5s by
// default) and answers 503 if any fails. Responses are plain text unless
// the client asks for JSON with ?format=json or Accept: application/json:
//
//	{"status":"unhealthy","checks":{"db":{"status":"unhealthy","error":"..."}}}
//
// Apps register the probes with trellis.WithHealthChecks and add checks
// such as db.Healthcheck(pool) or redis.Healthcheck(client).
package health
