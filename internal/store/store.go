// Package store provides the document database used by the publish saga to
// create post records.
//
// A document is any value that can be marshalled to JSON (SQL, memory) or a
// DynamoDB attribute map. Documents live in named collections and are keyed
// by id. Creation is insert-only: writing an id that already exists in the
// collection fails with ErrConflict instead of overwriting.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Collection names.
const (
	CollectionPosts = "posts"
)

var (
	// ErrConflict is returned when a document id already exists.
	ErrConflict = errors.New("document already exists")
	// ErrNotFound is returned by GetDocument for a missing id.
	ErrNotFound = errors.New("document not found")
)

// Identifiable documents carry their own id. Documents that do not get a
// fresh uuid.
type Identifiable interface {
	DocumentID() string
}

// DocumentStore creates documents.
type DocumentStore interface {
	// CreateDocument inserts data into collection and returns its id.
	CreateDocument(ctx context.Context, collection string, data any) (string, error)
}

// Reader is implemented by stores that can read a document back.
type Reader interface {
	// GetDocument unmarshals the document into out.
	GetDocument(ctx context.Context, collection, id string, out any) error
}

// ReadWriter combines DocumentStore and Reader.
type ReadWriter interface {
	DocumentStore
	Reader
}

func documentID(data any) string {
	if d, ok := data.(Identifiable); ok {
		if id := d.DocumentID(); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
