package authz

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	ofgaclient "github.com/openfga/go-sdk/client"
	"golang.org/x/sync/singleflight"
)

//go:embed model.json
var authorizationModelJSON []byte

// loadAuthorizationModel parses the embedded authorization model.
func loadAuthorizationModel() (ofgaclient.ClientWriteAuthorizationModelRequest, error) {
	var body ofgaclient.ClientWriteAuthorizationModelRequest
	if err := json.Unmarshal(authorizationModelJSON, &body); err != nil {
		return body, fmt.Errorf("embedded authorization model is invalid: %w", err)
	}
	return body, nil
}

// StoreIDs identifies the store and authorization model used for all tuple
// operations.
type StoreIDs struct {
	StoreID string
	ModelID string
}

// StoreHandle holds the resolved store and model ids as explicit
// process-scoped state. The ids are refreshed through singleflight once the
// TTL expires, so concurrent requests never stampede the resolver. Pass the
// handle by reference; never cache the ids elsewhere.
type StoreHandle struct {
	ttl time.Duration

	mu        sync.RWMutex
	ids       StoreIDs
	fetchedAt time.Time

	group singleflight.Group
}

// NewStoreHandle creates an empty handle. A zero ttl means the ids never
// expire once resolved.
func NewStoreHandle(ttl time.Duration) *StoreHandle {
	return &StoreHandle{ttl: ttl}
}

// Get returns the current ids, invoking resolve when they are missing or
// stale. Concurrent callers share one resolution.
func (h *StoreHandle) Get(ctx context.Context, resolve func(context.Context) (StoreIDs, error)) (StoreIDs, error) {
	h.mu.RLock()
	ids, fresh := h.ids, h.isFresh()
	h.mu.RUnlock()
	if fresh {
		return ids, nil
	}

	v, err, _ := h.group.Do("resolve", func() (interface{}, error) {
		// Re-check under the write path: another caller may have resolved
		// between the RUnlock above and entering the group.
		h.mu.RLock()
		if h.isFresh() {
			ids := h.ids
			h.mu.RUnlock()
			return ids, nil
		}
		h.mu.RUnlock()

		resolved, err := resolve(ctx)
		if err != nil {
			return StoreIDs{}, err
		}

		h.mu.Lock()
		h.ids = resolved
		h.fetchedAt = time.Now()
		h.mu.Unlock()
		return resolved, nil
	})
	if err != nil {
		return StoreIDs{}, err
	}
	return v.(StoreIDs), nil
}

// Invalidate forces the next Get to resolve again.
func (h *StoreHandle) Invalidate() {
	h.mu.Lock()
	h.fetchedAt = time.Time{}
	h.mu.Unlock()
}

// isFresh must be called with at least a read lock held.
func (h *StoreHandle) isFresh() bool {
	if h.fetchedAt.IsZero() {
		return false
	}
	if h.ttl == 0 {
		return true
	}
	return time.Since(h.fetchedAt) < h.ttl
}
