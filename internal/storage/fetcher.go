package storage

import "context"

// Fetcher adapts a Store to callers that want raw bytes by key, such as the
// decision engine's face-comparison path.
type Fetcher struct {
	store Store
}

func NewFetcher(store Store) *Fetcher {
	return &Fetcher{store: store}
}

func (f *Fetcher) Fetch(ctx context.Context, storageKey string) ([]byte, error) {
	obj, err := f.store.Get(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	return obj.Data, nil
}
