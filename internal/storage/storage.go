// Package storage provides the durable object storage used by the publish
// saga: upload a local file under a path and get back a URL, or delete a
// previously uploaded path.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidPath is returned for empty, absolute or escaping object paths.
var ErrInvalidPath = errors.New("invalid object path")

// ObjectStore uploads files and removes uploaded objects.
type ObjectStore interface {
	// Put uploads the file at localFile to objectPath and returns its URL.
	Put(ctx context.Context, objectPath, localFile string) (string, error)
	// Delete removes the object at objectPath. Deleting a missing object
	// is not an error.
	Delete(ctx context.Context, objectPath string) error
}

// PostObjectPath returns posts/<userID>/<postID>/<fileName>.
func PostObjectPath(userID, postID, fileName string) string {
	return path.Join("posts", userID, postID, path.Base(fileName))
}

func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return cleaned, nil
}
