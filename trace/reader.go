package trace

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/hupe1980/rewardsearch/blobstore"
)

// Reader decodes trace segments from a blobstore.
type Reader struct {
	store blobstore.BlobStore
}

// NewReader creates a reader.
func NewReader(store blobstore.BlobStore) *Reader {
	return &Reader{store: store}
}

// Runs returns the ids of all runs with at least one segment, sorted.
func (r *Reader) Runs(ctx context.Context) ([]string, error) {
	names, err := r.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var runs []string
	for _, name := range names {
		if path.Ext(name) != Extension {
			continue
		}
		run := path.Dir(name)
		if run == "." {
			continue
		}
		if _, ok := seen[run]; !ok {
			seen[run] = struct{}{}
			runs = append(runs, run)
		}
	}
	slices.Sort(runs)
	return runs, nil
}

// Segments returns the segment names of run in write order.
func (r *Reader) Segments(ctx context.Context, run string) ([]string, error) {
	return segmentNames(ctx, r.store, run)
}

func segmentNames(ctx context.Context, store blobstore.BlobStore, run string) ([]string, error) {
	names, err := store.List(ctx, run+"/")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		if path.Dir(name) == run && strings.HasSuffix(name, Extension) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out, nil
}

// ReadSegment decodes one segment.
func (r *Reader) ReadSegment(ctx context.Context, name string) ([]Record, error) {
	data, err := blobstore.ReadAll(ctx, r.store, name)
	if err != nil {
		return nil, err
	}
	records, _, err := DecodeSegment(data)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", name, err)
	}
	return records, nil
}

// Records decodes all records of run in order.
func (r *Reader) Records(ctx context.Context, run string) ([]Record, error) {
	segments, err := r.Segments(ctx, run)
	if err != nil {
		return nil, err
	}
	var all []Record
	for _, name := range segments {
		records, err := r.ReadSegment(ctx, name)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}
