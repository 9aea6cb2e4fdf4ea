package generator

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRecordHasAllFeatures(t *testing.T) {
	feats := []string{"sload", "dload", "rate", "dur"}
	g := NewGenerator(feats, 1)

	rec := g.NextRecord()
	require.Len(t, rec.Features, len(feats))
	for _, f := range feats {
		assert.True(t, rec.Features.Has(f))
	}
	assert.NotNil(t, net.ParseIP(rec.SourceIP))
	assert.False(t, rec.Timestamp.IsZero())
}

func TestGeneratorDeterministicWithSeed(t *testing.T) {
	feats := []string{"sload", "dload"}
	g1 := NewGenerator(feats, 42)
	g2 := NewGenerator(feats, 42)

	r1 := g1.NextRecord()
	r2 := g2.NextRecord()
	assert.Equal(t, r1.SourceIP, r2.SourceIP)
	assert.Equal(t, r1.Features, r2.Features)
}
