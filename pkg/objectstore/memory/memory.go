// Package memory implements an in-process object store for tests.
//
// Presigned URLs are synthetic (memory://bucket/key) and never
// dereferenced; tests put bytes in directly with Put or SetMultipart
// state with helper methods.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelsilo/silo/pkg/objectstore"
)

// Store implements objectstore.Store backed by a map.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	uploads map[string]*upload

	// Fail, when set, makes every operation return this error. Used to
	// exercise backend failure paths.
	Fail error
}

type upload struct {
	key   string
	parts map[int32][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		objects: make(map[string][]byte),
		uploads: make(map[string]*upload),
	}
}

// Put stores bytes directly, standing in for a client following a
// presigned PUT.
func (s *Store) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

// PutPart stores one multipart part, standing in for a client following
// a presigned part URL.
func (s *Store) PutPart(uploadID string, partNumber int32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[uploadID]
	if !ok {
		return fmt.Errorf("unknown upload %s", uploadID)
	}
	u.parts[partNumber] = data
	return nil
}

func (s *Store) presigned(method, key string, expiry time.Duration) objectstore.PresignedURL {
	return objectstore.PresignedURL{
		URL:       "memory://bucket/" + key,
		Method:    method,
		ExpiresAt: time.Now().Add(expiry).UTC(),
	}
}

func (s *Store) PresignPut(ctx context.Context, key string, size int64, expiry time.Duration) (objectstore.PresignedURL, error) {
	if s.Fail != nil {
		return objectstore.PresignedURL{}, s.Fail
	}
	return s.presigned("PUT", key, expiry), nil
}

func (s *Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (objectstore.PresignedURL, error) {
	if s.Fail != nil {
		return objectstore.PresignedURL{}, s.Fail
	}
	return s.presigned("GET", key, expiry), nil
}

func (s *Store) InitiateMultipart(ctx context.Context, key string) (string, error) {
	if s.Fail != nil {
		return "", s.Fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.uploads[id] = &upload{key: key, parts: make(map[int32][]byte)}
	return id, nil
}

func (s *Store) PresignPart(ctx context.Context, key, uploadID string, partNumber int32, expiry time.Duration) (objectstore.PresignedURL, error) {
	if s.Fail != nil {
		return objectstore.PresignedURL{}, s.Fail
	}
	return s.presigned("PUT", fmt.Sprintf("%s?uploadId=%s&partNumber=%d", key, uploadID, partNumber), expiry), nil
}

func (s *Store) CompleteMultipart(ctx context.Context, key, uploadID string, parts []objectstore.MultipartPart) error {
	if s.Fail != nil {
		return s.Fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[uploadID]
	if !ok {
		return fmt.Errorf("unknown upload %s", uploadID)
	}

	ordered := make([]objectstore.MultipartPart, len(parts))
	copy(ordered, parts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	var assembled []byte
	for _, p := range ordered {
		data, ok := u.parts[p.Number]
		if !ok {
			return fmt.Errorf("missing part %d", p.Number)
		}
		assembled = append(assembled, data...)
	}
	s.objects[key] = assembled
	delete(s.uploads, uploadID)
	return nil
}

func (s *Store) AbortMultipart(ctx context.Context, key, uploadID string) error {
	if s.Fail != nil {
		return s.Fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, uploadID)
	return nil
}

func (s *Store) Stat(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	if s.Fail != nil {
		return objectstore.ObjectInfo{}, s.Fail
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return objectstore.ObjectInfo{}, objectstore.ErrObjectMissing
	}
	return objectstore.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.Fail != nil {
		return s.Fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *Store) List(ctx context.Context, prefix string, fn func(objectstore.ObjectInfo) error) error {
	if s.Fail != nil {
		return s.Fail
	}
	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		s.mu.RLock()
		size := int64(len(s.objects[k]))
		s.mu.RUnlock()
		if err := fn(objectstore.ObjectInfo{Key: k, Size: size}); err != nil {
			return err
		}
	}
	return nil
}
