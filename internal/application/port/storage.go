package port

import "context"

// FileStorage is what the engine and handlers need from document storage:
// writing generated order documents and serving them back. Paths are
// relative to the storage root.
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
}
