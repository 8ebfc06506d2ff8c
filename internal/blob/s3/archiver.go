package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// multipartThreshold switches exports to multipart upload once the encoded
// payload exceeds one part.
const multipartThreshold = minPartSize

// ClosedOpportunitySource is the narrow read interface the archiver needs;
// the Postgres OpportunityStore satisfies it.
type ClosedOpportunitySource interface {
	ListClosedBefore(ctx context.Context, before time.Time) ([]domain.ArbOpportunity, error)
}

// VolumeSource reads volume buckets eligible for archival; the Postgres
// VolumeStore satisfies it.
type VolumeSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.VolumeBucket, error)
}

// Archiver implements domain.Archiver: it serializes closed opportunities
// and aged volume history to JSONL and uploads them. It never deletes from
// the primary store; pruning is a separate step run after the archive is
// verified.
type Archiver struct {
	writer  domain.BlobWriter
	source  ClosedOpportunitySource
	volumes VolumeSource
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, source ClosedOpportunitySource, volumes VolumeSource) *Archiver {
	return &Archiver{writer: writer, source: source, volumes: volumes}
}

// ArchiveClosedOpportunities exports every opportunity resolved before the
// cutoff as one JSONL object and returns the object path and record count.
// A window with no records uploads nothing and returns an empty path.
func (a *Archiver) ArchiveClosedOpportunities(ctx context.Context, before time.Time) (string, int, error) {
	opps, err := a.source.ListClosedBefore(ctx, before)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: list closed opportunities: %w", err)
	}
	if len(opps) == 0 {
		return "", 0, nil
	}

	path := fmt.Sprintf("archive/opportunities/%s.jsonl", before.UTC().Format("2006-01-02T15-04-05"))
	if err := a.uploadJSONL(ctx, path, len(opps), func(i int) any { return opps[i] }); err != nil {
		return "", 0, err
	}
	return path, len(opps), nil
}

// ArchiveVolumeHistory exports every volume bucket older than the cutoff as
// one JSONL object and returns the object path and record count. An empty
// window uploads nothing.
func (a *Archiver) ArchiveVolumeHistory(ctx context.Context, before time.Time) (string, int, error) {
	buckets, err := a.volumes.ListBefore(ctx, before)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: list volume history: %w", err)
	}
	if len(buckets) == 0 {
		return "", 0, nil
	}

	path := fmt.Sprintf("archive/volume/%s.jsonl", before.UTC().Format("2006-01-02T15-04-05"))
	if err := a.uploadJSONL(ctx, path, len(buckets), func(i int) any { return buckets[i] }); err != nil {
		return "", 0, err
	}
	return path, len(buckets), nil
}

// uploadJSONL encodes n records as newline-delimited JSON and uploads the
// result, switching to multipart above one part size.
func (a *Archiver) uploadJSONL(ctx context.Context, path string, n int, record func(int) any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := 0; i < n; i++ {
		if err := enc.Encode(record(i)); err != nil {
			return fmt.Errorf("s3blob: encode record for %s: %w", path, err)
		}
	}

	if int64(buf.Len()) > multipartThreshold {
		return a.writer.PutMultipart(ctx, path, &buf, minPartSize)
	}
	return a.writer.Put(ctx, path, &buf, "application/x-ndjson")
}
