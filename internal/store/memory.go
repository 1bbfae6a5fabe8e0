package store

import (
	"context"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and local
// development. Batch commits are atomic under the store mutex.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]Document
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]Document)}
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, collection, id string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(collection, id, cloneDocument(doc))
	return nil
}

// Merge implements Store.
func (s *MemoryStore) Merge(_ context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(collection, id, fields)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, collection, field string, value any) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []Doc
	for id, doc := range s.data[collection] {
		if v, ok := doc[field]; ok && reflect.DeepEqual(v, value) {
			docs = append(docs, Doc{Ref: Ref{Collection: collection, ID: id}, Data: cloneDocument(doc)})
		}
	}
	sortDocs(docs)
	return docs, nil
}

// All implements Store.
func (s *MemoryStore) All(_ context.Context, collection string) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []Doc
	for id, doc := range s.data[collection] {
		docs = append(docs, Doc{Ref: Ref{Collection: collection, ID: id}, Data: cloneDocument(doc)})
	}
	sortDocs(docs)
	return docs, nil
}

// Batch implements Store.
func (s *MemoryStore) Batch() Batch {
	return &memoryBatch{store: s}
}

func (s *MemoryStore) setLocked(collection, id string, doc Document) {
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]Document)
	}
	s.data[collection][id] = doc
}

func (s *MemoryStore) mergeLocked(collection, id string, fields Document) {
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]Document)
	}
	doc, ok := s.data[collection][id]
	if !ok {
		doc = make(Document)
		s.data[collection][id] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
}

type batchOp struct {
	ref    Ref
	fields Document
	del    bool
}

type memoryBatch struct {
	store *MemoryStore
	ops   []batchOp
}

func (b *memoryBatch) Update(ref Ref, fields Document) {
	b.ops = append(b.ops, batchOp{ref: ref, fields: cloneDocument(fields)})
}

func (b *memoryBatch) Delete(ref Ref) {
	b.ops = append(b.ops, batchOp{ref: ref, del: true})
}

// Commit applies every staged operation under one lock so concurrent
// readers observe either all of the batch or none of it.
func (b *memoryBatch) Commit(_ context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		if op.del {
			delete(b.store.data[op.ref.Collection], op.ref.ID)
			continue
		}
		b.store.mergeLocked(op.ref.Collection, op.ref.ID, op.fields)
	}
	return nil
}

func sortDocs(docs []Doc) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Ref.ID < docs[j].Ref.ID })
}
