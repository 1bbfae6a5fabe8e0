package store

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("store: document not found")

// Document is the free-form body of a stored document.
type Document map[string]any

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

// Doc pairs a reference with its decoded body.
type Doc struct {
	Ref  Ref
	Data Document
}

// Store is the document-store port. Mutation is limited to
// single-document writes, merge-writes and one atomic multi-item batch;
// the store's native last-write-wins semantics apply to individual
// documents.
type Store interface {
	// Get returns the document at (collection, id), or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set overwrites the document at (collection, id).
	Set(ctx context.Context, collection, id string, doc Document) error
	// Merge writes the given fields onto the document, preserving any
	// fields not named. Creates the document if absent.
	Merge(ctx context.Context, collection, id string, fields Document) error
	// Delete removes a single document. Deleting an absent document is
	// not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query returns every document in the collection whose field equals
	// value.
	Query(ctx context.Context, collection, field string, value any) ([]Doc, error)
	// All returns every document in the collection.
	All(ctx context.Context, collection string) ([]Doc, error)
	// Batch starts an atomic write batch. All staged operations apply
	// together on Commit, or none do.
	Batch() Batch
}

// Batch accumulates updates and deletes for one atomic commit.
type Batch interface {
	Update(ref Ref, fields Document)
	Delete(ref Ref)
	Commit(ctx context.Context) error
}
