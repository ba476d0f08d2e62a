package port

import "context"

// Change reports that a document was written or deleted by Origin. A
// Resync change names no document: the subscriber missed changes and must
// reread everything.
type Change struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
	Resync bool   `json:"-"`
}

// DocumentStore is the shared key-value store holding the persisted cart
// documents. Writes are last-writer-wins per document.
type DocumentStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, origin string) error
	Delete(ctx context.Context, key string, origin string) error

	// Subscribe delivers one Change per Put or Delete until ctx is done,
	// then closes the channel.
	Subscribe(ctx context.Context) (<-chan Change, error)
}
