package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCanonicalBoL_RequiredFields(t *testing.T) {
	_, err := NewCanonicalBoL("", Party{Name: "A"}, Party{Name: "B"})
	assert.Error(t, err)

	_, err = NewCanonicalBoL("APU106546", Party{}, Party{Name: "B"})
	assert.Error(t, err)

	_, err = NewCanonicalBoL("APU106546", Party{Name: "A"}, Party{})
	assert.Error(t, err)

	b, err := NewCanonicalBoL("APU106546", Party{Name: "A"}, Party{Name: "B"})
	require.NoError(t, err)
	assert.Equal(t, "APU106546", b.BoLNumber)
}

func TestNewCanonicalBoL_AcceptsPlaceholders(t *testing.T) {
	// Placeholders are representable; rules flag them later.
	b, err := NewCanonicalBoL("TBD", Party{Name: "Unknown Shipper"}, Party{Name: "UNKNOWN"})
	require.NoError(t, err)
	assert.False(t, b.Shipper.IsReal())
}

func TestAddContainer_Normalizes(t *testing.T) {
	b, err := NewCanonicalBoL("X1", Party{Name: "A"}, Party{Name: "B"})
	require.NoError(t, err)

	b.AddContainer(Container{Number: " mrsu 482 5686 "})
	require.Len(t, b.Containers, 1)
	assert.Equal(t, "MRSU4825686", b.Containers[0].Number)
}

func TestValidContainerNumber(t *testing.T) {
	tests := []struct {
		number string
		valid  bool
	}{
		{"MRSU4825686", true},
		{"MRSU4825687", false}, // wrong check digit
		{"MRSU482568", false},  // too short
		{"1RSU4825686", false}, // digit in prefix
		{"MRSU48256861", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidContainerNumber(tt.number), tt.number)
	}
}

func TestExtractLocode(t *testing.T) {
	assert.Equal(t, "NGAPP", ExtractLocode("Apapa, Lagos (NGAPP)"))
	assert.Equal(t, "DEHAM", ExtractLocode("DEHAM Hamburg"))
	assert.Equal(t, "", ExtractLocode("Hamburg"))
	assert.Equal(t, "", ExtractLocode(""))
}

func TestCanonicalBoL_RoundTrip(t *testing.T) {
	issue := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	weight := 25000.0

	b, err := NewCanonicalBoL("APU106546",
		Party{Name: "VIBOTAJ GLOBAL NIGERIA LIMITED", Country: "NG"},
		Party{Name: "HAGES GMBH", Address: "Bremen", Country: "DE"},
	)
	require.NoError(t, err)
	b.NotifyParty = &Party{Name: "HAGES GMBH"}
	b.AddContainer(Container{Number: "MRSU4825686", SealNumber: "SL123", Type: "40HC", WeightKg: &weight})
	b.Cargo = []CargoLine{{Description: "DRIED COW HOOVES", HSCode: "050790", GrossWeightKg: &weight, Unit: "BAGS"}}
	b.VesselName = "MSC MARINA"
	b.VoyageNumber = "FA429A"
	b.PortOfLoading = "Apapa (NGAPP)"
	b.PortOfDischarge = "Hamburg (DEHAM)"
	b.IssueDate = &issue
	b.FreightTerms = "FREIGHT PREPAID"
	b.RawText = "raw"
	b.ConfidenceScore = 0.85

	m, err := b.ToMap()
	require.NoError(t, err)

	got, err := FromMap(m)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestSignalFieldCount(t *testing.T) {
	b := &CanonicalBoL{}
	assert.Equal(t, 0, b.SignalFieldCount())

	b.BoLNumber = "APU106546"
	b.Shipper.Name = "A"
	b.Consignee.Name = "B"
	b.AddContainer(Container{Number: "MRSU4825686"})
	b.VesselName = "MSC MARINA"
	b.PortOfLoading = "Apapa"
	assert.Equal(t, 6, b.SignalFieldCount())
}

func TestTotalGrossWeightKg(t *testing.T) {
	b := &CanonicalBoL{}
	_, ok := b.TotalGrossWeightKg()
	assert.False(t, ok)

	w1, w2 := 10000.0, 15000.0
	b.Cargo = []CargoLine{{GrossWeightKg: &w1}, {Description: "no weight"}, {GrossWeightKg: &w2}}
	total, ok := b.TotalGrossWeightKg()
	require.True(t, ok)
	assert.InDelta(t, 25000.0, total, 0.001)
}
