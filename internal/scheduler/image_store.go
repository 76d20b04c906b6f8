package scheduler

import (
	"bytes"
	"context"

	"workcard-backend/internal/storage"
)

// StorageImageStore adapts a storage.Store (R2Store or LocalStore) into the
// scheduler's ImageStore capability, so the worker can archive a card's
// original image bytes to the same object store the upload handler uses.
type StorageImageStore struct {
	store storage.Store
}

// NewStorageImageStore builds a StorageImageStore over the given backend.
func NewStorageImageStore(store storage.Store) *StorageImageStore {
	return &StorageImageStore{store: store}
}

// Archive saves imageBytes at path, overwriting any prior archive for the
// same job — archival is idempotent so a retried job can re-run safely.
func (s *StorageImageStore) Archive(ctx context.Context, path string, imageBytes []byte, contentType string) error {
	_, err := s.store.Save(ctx, path, bytes.NewReader(imageBytes), contentType)
	return err
}
