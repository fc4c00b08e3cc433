package reference

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/hupe1980/rewardsearch/blobstore"
	"github.com/hupe1980/rewardsearch/internal/cache"
	"github.com/hupe1980/rewardsearch/internal/resource"
	"github.com/hupe1980/rewardsearch/particle"
)

var (
	// ImageExtensions are the extensions of reference images.
	ImageExtensions = []string{".jpg", ".jpeg", ".png"}

	// TextExtensions are the extensions of reference prompts.
	TextExtensions = []string{".txt"}
)

var (
	// ErrEmptyCatalog is returned when no blob matches the catalog filter.
	ErrEmptyCatalog = errors.New("reference: catalog is empty")

	// ErrIndexOutOfRange is returned for an index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("reference: index out of range")
)

// DefaultCacheBytes bounds the bytes of loaded items kept in memory.
const DefaultCacheBytes = 64 << 20

type options struct {
	cacheBytes int64
	rc         *resource.Controller
	allowEmpty bool
}

// Option configures a Catalog.
type Option func(*options)

// WithCacheBytes sets the LRU capacity in bytes. Zero disables caching.
func WithCacheBytes(n int64) Option {
	return func(o *options) {
		o.cacheBytes = n
	}
}

// WithResourceController charges cached bytes against rc's memory budget.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithAllowEmpty permits a catalog without items.
func WithAllowEmpty() Option {
	return func(o *options) {
		o.allowEmpty = true
	}
}

// Catalog is a sorted, filtered listing of blobs under a prefix.
type Catalog struct {
	store blobstore.BlobStore
	names []string
	cache *cache.LRU
}

// NewCatalog lists prefix in store and keeps the blobs whose extension
// matches one of exts (case-insensitive). Names are sorted so indices are
// stable across runs.
func NewCatalog(ctx context.Context, store blobstore.BlobStore, prefix string, exts []string, optFns ...Option) (*Catalog, error) {
	opts := options{cacheBytes: DefaultCacheBytes}
	for _, fn := range optFns {
		fn(&opts)
	}

	all, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}

	names := make([]string, 0, len(all))
	for _, name := range all {
		if hasExtension(name, exts) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	if len(names) == 0 && !opts.allowEmpty {
		return nil, fmt.Errorf("%w: no %s files under %q", ErrEmptyCatalog, strings.Join(exts, "/"), prefix)
	}

	c := &Catalog{
		store: store,
		names: names,
	}
	if opts.cacheBytes > 0 {
		c.cache = cache.NewLRU(opts.cacheBytes, opts.rc)
	}
	return c, nil
}

func hasExtension(name string, exts []string) bool {
	ext := path.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.names) }

// Names returns a copy of the sorted item names.
func (c *Catalog) Names() []string { return slices.Clone(c.names) }

// Name returns the blob name of item i.
func (c *Catalog) Name(i int) (string, error) {
	if i < 0 || i >= len(c.names) {
		return "", fmt.Errorf("%w: %d (catalog has %d items)", ErrIndexOutOfRange, i, len(c.names))
	}
	return c.names[i], nil
}

// Load returns the raw bytes of item i.
func (c *Catalog) Load(ctx context.Context, i int) ([]byte, error) {
	name, err := c.Name(i)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if b, ok := c.cache.Get(name); ok {
			return b, nil
		}
	}

	b, err := blobstore.ReadAll(ctx, c.store, name)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}
	if c.cache != nil {
		c.cache.Set(name, b)
	}
	return b, nil
}

// LoadText returns item i as a string.
func (c *Catalog) LoadText(ctx context.Context, i int) (string, error) {
	b, err := c.Load(ctx, i)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LoadImage decodes item i into a single-particle batch of shape 3 x res x res.
func (c *Catalog) LoadImage(ctx context.Context, i, res int) (*particle.Batch, error) {
	b, err := c.Load(ctx, i)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(b, res)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", c.names[i], err)
	}
	return img, nil
}

// CacheStats returns cache hits and misses.
func (c *Catalog) CacheStats() (hits, misses int64) {
	if c.cache == nil {
		return 0, 0
	}
	return c.cache.Stats()
}
