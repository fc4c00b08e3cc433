package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/rewardsearch/codec"
)

const (
	// Magic identifies trace segments (ASCII "RST1").
	Magic uint32 = 0x31545352
	// Version is the current segment format version.
	Version uint16 = 1

	headerSize = 24
)

var (
	ErrInvalidMagic    = errors.New("trace: invalid magic number")
	ErrInvalidVersion  = errors.New("trace: unsupported version")
	ErrChecksum        = errors.New("trace: checksum mismatch")
	ErrCorrupt         = errors.New("trace: corrupt segment")
	ErrUnknownCodec    = errors.New("trace: unknown codec")
	ErrUnknownCompress = errors.New("trace: unknown compression")
)

// Compression selects the segment body compression.
type Compression uint8

const (
	// CompressionNone stores the body as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompress, s)
	}
}

// Header is the fixed segment header.
type Header struct {
	Version     uint16
	Compression Compression
	Codec       string
	Records     uint32
	RawSize     uint32
	BodySize    uint32
	Checksum    uint32
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func compress(data []byte, c Compression) ([]byte, Compression, error) {
	if len(data) == 0 {
		return data, CompressionNone, nil
	}

	var out []byte
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, 0, err
		}
		out = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownCompress, c)
	}

	// Incompressible bodies are stored raw.
	if len(out) == 0 || len(out) >= len(data) {
		return data, CompressionNone, nil
	}
	return out, c, nil
}

func decompress(body []byte, c Compression, rawSize uint32) ([]byte, error) {
	switch c {
	case CompressionNone:
		return body, nil
	case CompressionLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, make([]byte, 0, rawSize))
		if err != nil {
			return nil, err
		}
		if uint32(len(out)) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompress, c)
	}
}

// EncodeSegment serializes records into a segment.
func EncodeSegment(records []Record, c Compression, cd codec.Codec) ([]byte, error) {
	if cd == nil {
		cd = codec.Default
	}
	name := cd.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("%w: name too long", ErrUnknownCodec)
	}

	wire := make([]wireRecord, len(records))
	for i, r := range records {
		w, err := toWire(r)
		if err != nil {
			return nil, err
		}
		wire[i] = w
	}
	raw, err := cd.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}

	body, used, err := compress(raw, c)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}

	out := make([]byte, headerSize+len(name)+len(body))
	binary.LittleEndian.PutUint32(out[0:], Magic)
	binary.LittleEndian.PutUint16(out[4:], Version)
	out[6] = byte(used)
	out[7] = byte(len(name))
	binary.LittleEndian.PutUint32(out[8:], uint32(len(records)))
	binary.LittleEndian.PutUint32(out[12:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[16:], uint32(len(body)))
	binary.LittleEndian.PutUint32(out[20:], crc32.ChecksumIEEE(body))
	copy(out[headerSize:], name)
	copy(out[headerSize+len(name):], body)
	return out, nil
}

// ReadHeader parses the segment header.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}
	if binary.LittleEndian.Uint32(data[0:]) != Magic {
		return Header{}, ErrInvalidMagic
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(data[4:]),
		Compression: Compression(data[6]),
		Records:     binary.LittleEndian.Uint32(data[8:]),
		RawSize:     binary.LittleEndian.Uint32(data[12:]),
		BodySize:    binary.LittleEndian.Uint32(data[16:]),
		Checksum:    binary.LittleEndian.Uint32(data[20:]),
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrInvalidVersion, h.Version)
	}
	nameLen := int(data[7])
	if len(data) < headerSize+nameLen {
		return Header{}, fmt.Errorf("%w: truncated codec name", ErrCorrupt)
	}
	h.Codec = string(data[headerSize : headerSize+nameLen])
	return h, nil
}

// DecodeSegment parses a segment produced by EncodeSegment.
func DecodeSegment(data []byte) ([]Record, Header, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, Header{}, err
	}
	start := headerSize + len(h.Codec)
	if uint64(len(data)) != uint64(start)+uint64(h.BodySize) {
		return nil, h, fmt.Errorf("%w: body is %d bytes, header says %d", ErrCorrupt, len(data)-start, h.BodySize)
	}
	body := data[start:]
	if crc32.ChecksumIEEE(body) != h.Checksum {
		return nil, h, ErrChecksum
	}

	cd, ok := codec.ByName(h.Codec)
	if !ok {
		return nil, h, fmt.Errorf("%w: %q", ErrUnknownCodec, h.Codec)
	}
	raw, err := decompress(body, h.Compression, h.RawSize)
	if err != nil {
		return nil, h, err
	}

	var wire []wireRecord
	if err := cd.Unmarshal(raw, &wire); err != nil {
		return nil, h, fmt.Errorf("decode records: %w", err)
	}
	if uint32(len(wire)) != h.Records {
		return nil, h, fmt.Errorf("%w: %d records, header says %d", ErrCorrupt, len(wire), h.Records)
	}

	records := make([]Record, len(wire))
	for i, w := range wire {
		if records[i], err = fromWire(w); err != nil {
			return nil, h, err
		}
	}
	return records, h, nil
}
