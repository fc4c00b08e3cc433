// Package trace records the decisions of a guided sampling run.
//
// Every guided step produces a Record holding the rewards, the group size and
// the index assignment; the distinct indices kept by the assignment are stored
// as a roaring bitmap. A Writer buffers records and flushes them as
// self-describing segment blobs to a blobstore:
//
//	<run>/<seq>.trace
//
// Segment layout (little-endian):
//
//	magic    uint32  "RST1"
//	version  uint16
//	compress uint8   0=none 1=lz4 2=zstd
//	codecLen uint8
//	records  uint32
//	rawSize  uint32  encoded body size before compression
//	bodySize uint32  stored body size
//	checksum uint32  CRC32 (IEEE) of the stored body
//	codec    [codecLen]byte
//	body     [bodySize]byte
//
// The body is the codec encoding of the record list. A Reader lists runs and
// decodes their segments in order.
package trace
