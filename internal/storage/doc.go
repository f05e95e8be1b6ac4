// Package storage persists collected leads and answers the engine's
// dedup queries.
//
// The Store interface is deliberately narrow: existence check by identity
// key, insert, analysis attachment, and a count for stop-condition
// reporting. Drivers: memory (default), sqlite, bolt, redis.
package storage
