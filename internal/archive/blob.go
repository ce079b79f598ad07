// Package archive keeps run reports in blob storage
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/kode4food/relay/internal/pipeline"
	"github.com/kode4food/relay/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobArchive stores run reports as JSON documents using gocloud.dev/blob,
// supporting S3, GCS, Azure Blob Storage, local files and memory
type BlobArchive struct {
	bucket *blob.Bucket
	prefix string
}

const reportExt = ".json"

var (
	ErrReportNotFound = errors.New("run report not found")
	ErrSnapshotEmpty  = errors.New("snapshot name empty")
)

var _ pipeline.Archiver = (*BlobArchive)(nil)

// NewBlobArchive opens the bucket at bucketURL. Report keys are
// <prefix><snapshot>.json
func NewBlobArchive(
	ctx context.Context, bucketURL, prefix string,
) (*BlobArchive, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &BlobArchive{bucket: bucket, prefix: prefix}, nil
}

// Get returns the report for a snapshot
func (a *BlobArchive) Get(
	ctx context.Context, snapshot string,
) (*api.RunReport, error) {
	if snapshot == "" {
		return nil, ErrSnapshotEmpty
	}
	data, err := a.bucket.ReadAll(ctx, a.keyFor(snapshot))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, snapshot)
		}
		return nil, err
	}

	var rep api.RunReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Put writes the report, replacing any previous report for its snapshot
func (a *BlobArchive) Put(ctx context.Context, rep *api.RunReport) error {
	if rep.Snapshot == "" {
		return ErrSnapshotEmpty
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	opts := &blob.WriterOptions{ContentType: "application/json"}
	return a.bucket.WriteAll(ctx, a.keyFor(rep.Snapshot), data, opts)
}

// Delete removes the report for a snapshot. Missing reports are ignored
func (a *BlobArchive) Delete(ctx context.Context, snapshot string) error {
	err := a.bucket.Delete(ctx, a.keyFor(snapshot))
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

// List returns the snapshot names with an archived report
func (a *BlobArchive) List(ctx context.Context) ([]string, error) {
	var res []string
	iter := a.bucket.List(&blob.ListOptions{Prefix: a.prefix})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		if obj.IsDir || !strings.HasSuffix(obj.Key, reportExt) {
			continue
		}
		name := strings.TrimPrefix(obj.Key, a.prefix)
		res = append(res, strings.TrimSuffix(name, reportExt))
	}
}

func (a *BlobArchive) Close() error {
	return a.bucket.Close()
}

func (a *BlobArchive) keyFor(snapshot string) string {
	return a.prefix + snapshot + reportExt
}
