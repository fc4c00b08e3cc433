package trace

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rewardsearch/blobstore"
	"github.com/hupe1980/rewardsearch/codec"
	"github.com/hupe1980/rewardsearch/search"
)

func sampleRecords(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		rewards := make([]float64, 16)
		for j := range rewards {
			rewards[j] = float64((i*7+j*3)%11) * 0.1
		}
		assignment := make([]int, 16)
		for j := range assignment {
			assignment[j] = j / 4 * 4
		}
		out[i] = NewRecord("run-1", (i+1)*10, "group-meeting", search.Deterministic, 4, rewards, assignment)
	}
	return out
}

func TestSurvivors(t *testing.T) {
	bm := Survivors([]int{3, 3, 1, 7, 1})
	assert.Equal(t, uint64(3), bm.GetCardinality())
	assert.Equal(t, []uint32{1, 3, 7}, bm.ToArray())
}

func TestRecordHelpers(t *testing.T) {
	r := NewRecord("r", 1, "global", search.Probabilistic, 4, []float64{1, math.NaN(), 3, math.Inf(1)}, []int{0, 1, 2, 3})
	assert.False(t, r.Resampled())
	idx, v := r.Best()
	assert.Equal(t, 2, idx)
	assert.Equal(t, 3.0, v)

	r.Assignment = []int{2, 2, 2, 2}
	assert.True(t, r.Resampled())

	idx, _ = Record{Rewards: []float64{math.NaN()}}.Best()
	assert.Equal(t, -1, idx)
}

func TestSegmentRoundTrip(t *testing.T) {
	records := sampleRecords(40)
	records[3].Rewards[5] = math.NaN()

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		for _, cd := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
			t.Run(c.String()+"/"+cd.Name(), func(t *testing.T) {
				data, err := EncodeSegment(records, c, cd)
				require.NoError(t, err)

				h, err := ReadHeader(data)
				require.NoError(t, err)
				assert.Equal(t, Version, h.Version)
				assert.Equal(t, cd.Name(), h.Codec)
				assert.Equal(t, uint32(40), h.Records)
				if c != CompressionNone {
					// Repetitive JSON always compresses.
					assert.Equal(t, c, h.Compression)
					assert.Less(t, h.BodySize, h.RawSize)
				}

				got, _, err := DecodeSegment(data)
				require.NoError(t, err)
				require.Len(t, got, len(records))
				for i := range records {
					want := records[i]
					assert.Equal(t, want.Run, got[i].Run)
					assert.Equal(t, want.Step, got[i].Step)
					assert.Equal(t, want.Method, got[i].Method)
					assert.Equal(t, want.Mode, got[i].Mode)
					assert.Equal(t, want.GroupSize, got[i].GroupSize)
					assert.Equal(t, want.Assignment, got[i].Assignment)
					assert.True(t, want.Survivors.Equals(got[i].Survivors))
					assert.True(t, want.Time.Equal(got[i].Time))
					for j, v := range want.Rewards {
						if math.IsNaN(v) {
							assert.True(t, math.IsNaN(got[i].Rewards[j]))
						} else {
							assert.Equal(t, v, got[i].Rewards[j])
						}
					}
				}
			})
		}
	}
}

func TestDecodeSegmentErrors(t *testing.T) {
	data, err := EncodeSegment(sampleRecords(2), CompressionZSTD, codec.GoJSON{})
	require.NoError(t, err)

	t.Run("Short", func(t *testing.T) {
		_, _, err := DecodeSegment(data[:10])
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("Magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] ^= 0xff
		_, _, err := DecodeSegment(bad)
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("Version", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[4] = 9
		_, _, err := DecodeSegment(bad)
		assert.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("Checksum", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-1] ^= 0x01
		_, _, err := DecodeSegment(bad)
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, _, err := DecodeSegment(data[:len(data)-1])
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("brotli")
	assert.ErrorIs(t, err, ErrUnknownCompress)
	assert.Equal(t, "Unknown(9)", Compression(9).String())
}

func TestWriterReader(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	w, err := NewWriter(ctx, store, "run-a", WithSegmentRecords(4), WithCompression(CompressionLZ4))
	require.NoError(t, err)

	records := sampleRecords(10)
	for _, r := range records {
		r.Run = "ignored"
		require.NoError(t, w.Append(ctx, r))
	}
	segments, written := w.Stats()
	assert.Equal(t, 2, segments)
	assert.Equal(t, 8, written)

	require.NoError(t, w.Close(ctx))
	require.NoError(t, w.Close(ctx))
	assert.ErrorIs(t, w.Append(ctx, records[0]), ErrClosed)

	other, err := NewWriter(ctx, store, "run-b")
	require.NoError(t, err)
	require.NoError(t, other.Append(ctx, records[0]))
	require.NoError(t, other.Flush(ctx))

	r := NewReader(store)
	runs, err := r.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, runs)

	names, err := r.Segments(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a/000000.trace", "run-a/000001.trace", "run-a/000002.trace"}, names)

	got, err := r.Records(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i, rec := range got {
		assert.Equal(t, "run-a", rec.Run)
		assert.Equal(t, records[i].Step, rec.Step)
	}

	// A new writer for an existing run appends after its segments.
	again, err := NewWriter(ctx, store, "run-a")
	require.NoError(t, err)
	require.NoError(t, again.Append(ctx, records[0]))
	require.NoError(t, again.Close(ctx))
	names, err = r.Segments(ctx, "run-a")
	require.NoError(t, err)
	assert.Len(t, names, 4)
}

func TestWriterInvalidRun(t *testing.T) {
	store := blobstore.NewMemoryStore()
	for _, run := range []string{"", "/abs", "a/../b", "a/"} {
		_, err := NewWriter(context.Background(), store, run)
		assert.Error(t, err, run)
	}
}

func TestSummarize(t *testing.T) {
	records := sampleRecords(3)
	records[1].Rewards[2] = 42
	records[2].Assignment = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

	s := Summarize(records)
	assert.Equal(t, "run-1", s.Run)
	assert.Equal(t, "group-meeting", s.Method)
	assert.Equal(t, 3, s.Steps)
	assert.Equal(t, 2, s.Resamples)
	assert.Equal(t, 10, s.FirstStep)
	assert.Equal(t, 30, s.LastStep)
	assert.Equal(t, 20, s.BestStep)
	assert.Equal(t, 42.0, s.BestReward)

	empty := Summarize(nil)
	assert.Equal(t, -1, empty.BestStep)
}
