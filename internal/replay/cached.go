package replay

import (
	"context"
	"encoding/json"

	"github.com/ppiankov/demoscribe/internal/cache"
)

// CachedEngine memoizes successful playbacks. Exhaustive mode and batch
// re-runs generate identical candidates; replaying them again would only
// burn engine launches.
type CachedEngine struct {
	inner Engine
	store cache.Cache
}

// NewCachedEngine wraps an engine with a transcript cache.
func NewCachedEngine(inner Engine, store cache.Cache) *CachedEngine {
	return &CachedEngine{inner: inner, store: store}
}

// Run returns cached transcripts when the exact candidate ran before.
// Failures are not cached: a missing resource file may appear later.
func (e *CachedEngine) Run(ctx context.Context, lmpPath string, c Candidate) (*Transcripts, error) {
	key := cache.Key(lmpPath + "|" + c.Set.URL + "|" + c.Args)
	if raw, ok := e.store.Get(key); ok {
		var cached Transcripts
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	transcripts, err := e.inner.Run(ctx, lmpPath, c)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(transcripts); err == nil {
		e.store.Set(key, raw, 0)
	}
	return transcripts, nil
}
