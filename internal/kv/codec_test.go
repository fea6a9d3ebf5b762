package kv_test

import (
	"testing"
	"time"

	"github.com/skywatch/skywatch/internal/kv"
	"github.com/skywatch/skywatch/internal/skywatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RedisCache must satisfy the cache contract the engines consume.
var _ skywatch.CacheStore = (*kv.RedisCache)(nil)

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	src := &skywatch.SmartGroupResult{
		Data: []skywatch.SmartErrorGroup{{
			Fingerprint: "fp1",
			Message:     "Network request failed",
			TotalCount:  42,
			IsMerged:    true,
			MergedCount: 2,
			SubGroups: []skywatch.SubGroup{
				{Fingerprint: "fp2", Message: "Network request failed again", TotalCount: 7},
			},
			FirstSeen: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			LastSeen:  time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		}},
		Total:          1,
		OriginalGroups: 3,
		MergedGroups:   1,
		ReductionRate:  66.67,
	}

	b, err := kv.Serialize(src)
	require.NoError(t, err)

	dst := &skywatch.SmartGroupResult{}
	require.NoError(t, kv.Deserialize(b, dst))

	require.Len(t, dst.Data, 1)
	got, want := dst.Data[0], src.Data[0]
	assert.Equal(t, want.Fingerprint, got.Fingerprint)
	assert.Equal(t, want.Message, got.Message)
	assert.Equal(t, want.TotalCount, got.TotalCount)
	assert.Equal(t, want.MergedCount, got.MergedCount)
	assert.True(t, got.IsMerged)
	assert.Equal(t, want.SubGroups, got.SubGroups)
	// decoded times lose the location but not the instant
	assert.True(t, got.FirstSeen.Equal(want.FirstSeen))
	assert.True(t, got.LastSeen.Equal(want.LastSeen))

	assert.Equal(t, src.Total, dst.Total)
	assert.Equal(t, src.OriginalGroups, dst.OriginalGroups)
	assert.Equal(t, src.MergedGroups, dst.MergedGroups)
	assert.InDelta(t, src.ReductionRate, dst.ReductionRate, 0)
}

func TestDeserializeGarbage(t *testing.T) {
	t.Parallel()

	dst := &skywatch.SpikeResult{}
	err := kv.Deserialize([]byte("\xff\xff\xff"), dst)
	assert.ErrorContains(t, err, "cbor")
}
