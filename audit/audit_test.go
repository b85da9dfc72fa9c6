package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainedLogLinksRecords(t *testing.T) {
	log := NewChainedLog()
	ctx := context.Background()

	log.Append(ctx, "trace-1", "order", "o-1", "created", "")
	log.Append(ctx, "trace-2", "trade", "1", "matched", "BTC-LTC")
	log.Append(ctx, "trace-3", "trade", "1", "settlement_pending", "BTC")

	records := log.Records()
	require.Len(t, records, 3)

	assert.Equal(t, int64(1), records[0].Cursor)
	assert.Equal(t, int64(3), records[2].Cursor)
	assert.Empty(t, records[0].PrevHash)
	assert.Equal(t, records[0].Hash, records[1].PrevHash)
	assert.Equal(t, records[1].Hash, records[2].PrevHash)

	assert.True(t, log.Verify())
}

func TestChainedLogDetectsTampering(t *testing.T) {
	log := NewChainedLog()
	ctx := context.Background()

	log.Append(ctx, "trace-1", "order", "o-1", "created", "")
	log.Append(ctx, "trace-2", "order", "o-1", "canceled", "")

	log.records[0].Action = "expired"
	assert.False(t, log.Verify())
}

func TestEmptyLogVerifies(t *testing.T) {
	assert.True(t, NewChainedLog().Verify())
}
