package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver exports historical engine data to blob storage. Archival never
// deletes from the primary store; pruning is a separate explicit step run
// after the archive has been verified.
type Archiver interface {
	// ArchiveClosedOpportunities uploads all opportunities resolved before
	// the cutoff as JSONL and returns the object path and record count.
	ArchiveClosedOpportunities(ctx context.Context, before time.Time) (string, int, error)
	// ArchiveVolumeHistory uploads all volume buckets older than the cutoff
	// as JSONL and returns the object path and record count.
	ArchiveVolumeHistory(ctx context.Context, before time.Time) (string, int, error)
}
