package repositories

import "errors"

var (
	// ErrFileNotFound is returned when an intake file is gone before parsing starts
	ErrFileNotFound = errors.New("file not found")
	// ErrNotConfigured marks a collaborator query with no template configured
	ErrNotConfigured = errors.New("query not configured")
	// ErrSourceUnavailable marks a collaborator that could not answer
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDocumentExists is returned by a DocumentSink when the name is taken
	ErrDocumentExists = errors.New("document already exists")
)
