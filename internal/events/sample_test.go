package events

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumns_FiniteMask(t *testing.T) {
	cols := Columns{
		ColEventRA:     {10.0, 11.0, 12.0, 13.0},
		ColEventDec:    {20.0, math.NaN(), 22.0, 23.0},
		ColEventEnergy: {100.0, 200.0, math.Inf(1), 400.0},
	}

	mask := cols.FiniteMask()
	assert.Equal(t, []bool{true, false, false, true}, mask)
}

func TestColumns_FiniteMask_CrossField(t *testing.T) {
	// A NaN in one column must drop that event from every column.
	cols := Columns{
		ColEventRA:  {10.0, 11.0, 12.0},
		ColEventDec: {20.0, math.NaN(), 22.0},
		ColMJD:      {59000.1, 59000.2, 59000.3},
	}

	masked := cols.Select(cols.FiniteMask())

	assert.Equal(t, []float64{10.0, 12.0}, masked[ColEventRA])
	assert.Equal(t, []float64{20.0, 22.0}, masked[ColEventDec])
	assert.Equal(t, []float64{59000.1, 59000.3}, masked[ColMJD])
}

func TestColumns_FiniteMask_IgnoresUnpopulated(t *testing.T) {
	// Zero-length columns mean the format does not record the quantity;
	// they must not force the mask to drop everything.
	cols := Columns{
		ColEventRA: {1.0, 2.0},
		ColMJD:     {},
	}

	mask := cols.FiniteMask()
	assert.Equal(t, []bool{true, true}, mask)

	masked := cols.Select(mask)
	assert.Len(t, masked[ColEventRA], 2)
	assert.Len(t, masked[ColMJD], 0)
}

func TestColumns_NumRows(t *testing.T) {
	assert.Equal(t, 0, Columns{}.NumRows())
	assert.Equal(t, 0, Columns{ColMJD: {}}.NumRows())
	assert.Equal(t, 3, Columns{ColMJD: {1, 2, 3}, ColDeltaT: {}}.NumRows())
}

func TestNewSample_DropsWorkingColumns(t *testing.T) {
	cols := Columns{
		ColEventRA:        {1.0},
		ColEventDec:       {2.0},
		ColDAQEventNumber: {42.0},
		ColTrueEnergy:     {7.5},
	}

	s := NewSample(cols, "GeV", nil)

	require.Equal(t, 1, s.NumEvents())
	assert.Equal(t, []float64{1.0}, s.EventRA)
	assert.Equal(t, "GeV", s.EnergyUnit)
}

func TestSample_PointingAlt(t *testing.T) {
	cols := Columns{
		ColEventRA:    {1.0, 2.0, 3.0},
		ColPointingZd: {0.0, 30.0, 90.0},
	}

	s := NewSample(cols, "TeV", nil)

	assert.Equal(t, []float64{90.0, 60.0, 0.0}, s.PointingAlt())
}

func TestEmptySample(t *testing.T) {
	s := EmptySample("TeV")

	assert.Equal(t, 0, s.NumEvents())
	assert.NotNil(t, s.EventRA)
	assert.Len(t, s.MJD, 0)

	_, ok := s.EffObsTime()
	assert.False(t, ok)
}

func TestSample_EqualColumnLengths(t *testing.T) {
	cols := Columns{
		ColEventRA:     {1, 2, 3, math.NaN()},
		ColEventDec:    {1, 2, 3, 4},
		ColEventEnergy: {1, math.Inf(-1), 3, 4},
		ColGammaness:   {0.1, 0.2, 0.3, 0.4},
		ColPointingRA:  {1, 2, 3, 4},
		ColPointingDec: {1, 2, 3, 4},
		ColPointingAz:  {1, 2, 3, 4},
		ColPointingZd:  {1, 2, 3, 4},
		ColMJD:         {1, 2, 3, 4},
		ColDeltaT:      {1, 2, 3, 4},
	}

	s := NewSample(cols.Select(cols.FiniteMask()), "GeV", nil)

	n := s.NumEvents()
	assert.Equal(t, 2, n)
	for _, col := range [][]float64{
		s.EventRA, s.EventDec, s.EventEnergy, s.Gammaness,
		s.PointingRA, s.PointingDec, s.PointingAz, s.PointingZd,
		s.MJD, s.DeltaT,
	} {
		assert.Len(t, col, n)
	}
}
