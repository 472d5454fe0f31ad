package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores playback transcripts keyed by the exact candidate that
// produced them, so a re-run of a batch never replays an identical attempt.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key hashes a candidate identity string into a cache key.
func Key(identity string) string {
	hash := sha256.Sum256([]byte(identity))
	return "demoscribe:v1:" + hex.EncodeToString(hash[:])
}
