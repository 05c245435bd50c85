package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeware/exportguard/internal/model"
)

func TestPackFresh(t *testing.T) {
	gen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		updated []time.Time
		want    bool
	}{
		{"all before generation", []time.Time{gen.Add(-time.Hour), gen.Add(-time.Minute)}, true},
		{"one changed after", []time.Time{gen.Add(-time.Hour), gen.Add(time.Second)}, false},
		{"no documents", nil, true},
		{"updated exactly at generation", []time.Time{gen}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := make([]model.Document, len(tt.updated))
			for i, u := range tt.updated {
				docs[i] = model.Document{ID: "d", UpdatedAt: u}
			}
			assert.Equal(t, tt.want, PackFresh(gen, docs))
		})
	}
}

func TestPackFresh_ZeroGenerationTime(t *testing.T) {
	assert.False(t, PackFresh(time.Time{}, nil), "a pack that was never generated is never fresh")
}

func TestMemory_RoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.Exists(ctx, "packs/shp-1.xlsx")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Upload(ctx, "packs/shp-1.xlsx", strings.NewReader("workbook bytes")))

	ok, err = m.Exists(ctx, "packs/shp-1.xlsx")
	require.NoError(t, err)
	assert.True(t, ok)

	url, err := m.DownloadURL(ctx, "packs/shp-1.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "memory://packs/shp-1.xlsx", url)

	data, ok := m.Get("packs/shp-1.xlsx")
	require.True(t, ok)
	assert.Equal(t, "workbook bytes", string(data))

	require.NoError(t, m.Delete(ctx, "packs/shp-1.xlsx"))
	_, err = m.DownloadURL(ctx, "packs/shp-1.xlsx")
	assert.Error(t, err)
}
