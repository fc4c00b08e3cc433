package blobstore

import (
	"context"
	"path"
	"strings"
)

// PrefixStore scopes every name of an underlying store under a fixed prefix.
type PrefixStore struct {
	store  BlobStore
	prefix string
}

var _ BlobStore = (*PrefixStore)(nil)

// WithPrefix returns store scoped under prefix. An empty prefix returns store.
func WithPrefix(store BlobStore, prefix string) BlobStore {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return store
	}
	return &PrefixStore{store: store, prefix: prefix + "/"}
}

func (s *PrefixStore) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *PrefixStore) Open(ctx context.Context, name string) (Blob, error) {
	return s.store.Open(ctx, s.key(name))
}

func (s *PrefixStore) Put(ctx context.Context, name string, data []byte) error {
	return s.store.Put(ctx, s.key(name), data)
}

func (s *PrefixStore) Delete(ctx context.Context, name string) error {
	return s.store.Delete(ctx, s.key(name))
}

// List strips the scope prefix from the returned names.
func (s *PrefixStore) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.store.List(ctx, s.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, strings.TrimPrefix(name, s.prefix))
	}
	return out, nil
}
