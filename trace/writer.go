package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"

	"github.com/hupe1980/rewardsearch/blobstore"
	"github.com/hupe1980/rewardsearch/codec"
)

// Extension is the file extension of segment blobs.
const Extension = ".trace"

// DefaultSegmentRecords is the number of buffered records that triggers a flush.
const DefaultSegmentRecords = 256

// ErrClosed is returned when appending to a closed writer.
var ErrClosed = errors.New("trace: writer closed")

type writerOptions struct {
	compression    Compression
	codec          codec.Codec
	segmentRecords int
	logger         *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*writerOptions)

// WithCompression sets the segment compression. Default: zstd.
func WithCompression(c Compression) WriterOption {
	return func(o *writerOptions) {
		o.compression = c
	}
}

// WithCodec sets the body codec. Default: codec.Default.
func WithCodec(c codec.Codec) WriterOption {
	return func(o *writerOptions) {
		o.codec = c
	}
}

// WithSegmentRecords sets the flush threshold. Values < 1 flush only on
// Flush and Close.
func WithSegmentRecords(n int) WriterOption {
	return func(o *writerOptions) {
		o.segmentRecords = n
	}
}

// WithLogger sets the writer logger.
func WithLogger(l *slog.Logger) WriterOption {
	return func(o *writerOptions) {
		o.logger = l
	}
}

// Writer buffers the records of one run and writes them as segments.
// It is safe for concurrent use.
type Writer struct {
	store blobstore.BlobStore
	run   string
	opts  writerOptions

	mu      sync.Mutex
	pending []Record
	seq     int
	written int
	closed  bool
}

// NewWriter creates a writer for run. Segments are written under "<run>/".
func NewWriter(ctx context.Context, store blobstore.BlobStore, run string, optFns ...WriterOption) (*Writer, error) {
	if run == "" || path.Clean(run) != run || path.IsAbs(run) {
		return nil, fmt.Errorf("trace: invalid run id %q", run)
	}
	opts := writerOptions{
		compression:    CompressionZSTD,
		codec:          codec.Default,
		segmentRecords: DefaultSegmentRecords,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	// Continue after existing segments of the same run.
	existing, err := segmentNames(ctx, store, run)
	if err != nil {
		return nil, err
	}

	return &Writer{
		store: store,
		run:   run,
		opts:  opts,
		seq:   len(existing),
	}, nil
}

// Run returns the run id.
func (w *Writer) Run() string { return w.run }

// Append buffers rec, stamping it with the writer's run id.
func (w *Writer) Append(ctx context.Context, rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	rec.Run = w.run
	w.pending = append(w.pending, rec)

	if w.opts.segmentRecords > 0 && len(w.pending) >= w.opts.segmentRecords {
		return w.flushLocked(ctx)
	}
	return nil
}

// Flush writes buffered records as one segment.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *Writer) flushLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	data, err := EncodeSegment(w.pending, w.opts.compression, w.opts.codec)
	if err != nil {
		return err
	}

	name := SegmentName(w.run, w.seq)
	if err := w.store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("write segment %s: %w", name, err)
	}
	w.opts.logger.Debug("trace segment written", "segment", name, "records", len(w.pending), "bytes", len(data))

	w.seq++
	w.written += len(w.pending)
	w.pending = nil
	return nil
}

// Close flushes and rejects further appends.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	err := w.flushLocked(ctx)
	w.closed = true
	return err
}

// Stats returns the number of segments and records written so far.
func (w *Writer) Stats() (segments, records int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq, w.written
}

// SegmentName returns the blob name of segment seq of run.
func SegmentName(run string, seq int) string {
	return fmt.Sprintf("%s/%06d%s", run, seq, Extension)
}
