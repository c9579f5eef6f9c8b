package loader

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/hdf5"

	"github.com/vheastro/bkgdata/internal/astro"
	"github.com/vheastro/bkgdata/internal/cuts"
)

// writeDL2Fixture writes rows as a compound dataset under the DL2
// parameter table key. rows must be a pointer to a slice of one of the
// row layouts. With tableSubnode the dataset sits one node below the
// key, the way PyTables lays out its tables.
func writeDL2Fixture(t *testing.T, path string, rows interface{}, n int, tableSubnode bool) {
	t.Helper()

	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	require.NoError(t, err)
	defer f.Close()

	g1, err := f.CreateGroup("dl2")
	require.NoError(t, err)
	defer g1.Close()
	g2, err := g1.CreateGroup("event")
	require.NoError(t, err)
	defer g2.Close()
	g3, err := g2.CreateGroup("telescope")
	require.NoError(t, err)
	defer g3.Close()
	g4, err := g3.CreateGroup("parameters")
	require.NoError(t, err)
	defer g4.Close()

	parent := &g4.CommonFG
	name := "LST_LSTCam"
	if tableSubnode {
		g5, err := g4.CreateGroup("LST_LSTCam")
		require.NoError(t, err)
		defer g5.Close()
		parent = &g5.CommonFG
		name = "table"
	}

	dtype, err := hdf5.NewDatatypeFromValue(rowElem(rows))
	require.NoError(t, err)
	defer dtype.Close()

	dspace, err := hdf5.CreateSimpleDataspace([]uint{uint(n)}, nil)
	require.NoError(t, err)
	defer dspace.Close()

	dset, err := parent.CreateDataset(name, dtype, dspace)
	require.NoError(t, err)
	defer dset.Close()

	require.NoError(t, dset.Write(rows))
}

// rowElem returns one element value of a pointer-to-slice, for compound
// type construction.
func rowElem(rows interface{}) interface{} {
	switch r := rows.(type) {
	case *[]dl2DataRow:
		return (*r)[0]
	case *[]dl2DataHorizontalRow:
		return (*r)[0]
	case *[]dl2DataDragonRow:
		return (*r)[0]
	case *[]dl2MCRow:
		return (*r)[0]
	case *[]dl2MCTriggerRow:
		return (*r)[0]
	}
	return nil
}

func dl2DataRows() []dl2DataRow {
	return []dl2DataRow{
		{EventID: 1, TriggerType: 1, RecoRA: 1.46, RecoDec: 0.384, Gammaness: 0.9,
			RecoEnergy: 0.8, DeltaT: 0.001, AzTel: 1.8, AltTel: 1.2, TriggerTime: 1609459200.0},
		{EventID: 2, TriggerType: 1, RecoRA: 1.47, RecoDec: 0.385, Gammaness: 0.7,
			RecoEnergy: 1.6, DeltaT: 0.002, AzTel: 1.8, AltTel: 1.2, TriggerTime: 1609459260.0},
	}
}

func TestLoader_DL2DataFile(t *testing.T) {
	rows := dl2DataRows()
	path := filepath.Join(t.TempDir(), "dl2_LST-1.Run02977.h5")
	writeDL2Fixture(t, path, &rows, len(rows), false)

	l := New(astro.Roque, discardLogger(), nil)
	sample, err := l.LoadEvents(path, nil)
	require.NoError(t, err)

	require.Equal(t, 2, sample.NumEvents())
	assert.Equal(t, "TeV", sample.EnergyUnit)

	// Angles arrive in radians and leave in degrees.
	assert.Equal(t, []float64{1.46 * radToDeg, 1.47 * radToDeg}, sample.EventRA)
	assert.Equal(t, []float64{0.384 * radToDeg, 0.385 * radToDeg}, sample.EventDec)
	assert.Equal(t, []float64{1.8 * radToDeg, 1.8 * radToDeg}, sample.PointingAz)

	// Zenith distance is derived from the telescope altitude.
	wantZd := 90.0 - 1.2*radToDeg
	assert.Equal(t, []float64{wantZd, wantZd}, sample.PointingZd)

	assert.Equal(t, []float64{0.8, 1.6}, sample.EventEnergy)
	assert.Equal(t, []float64{0.9, 0.7}, sample.Gammaness)
	assert.Equal(t, []float64{0.001, 0.002}, sample.DeltaT)

	// Trigger timestamps are unix seconds; 2021-01-01T00:00:00 UTC is
	// MJD 59215 exactly.
	require.Len(t, sample.MJD, 2)
	assert.Equal(t, 59215.0, sample.MJD[0])
	assert.Equal(t, astro.UnixToMJD(1609459260.0), sample.MJD[1])

	// DL2 carries pointing only in the horizontal frame; the equatorial
	// pointing is obtained through the per-event transform.
	for i := range sample.MJD {
		eq := astro.Roque.ToEquatorial(astro.Horizontal{
			Az:  astro.Degrees(sample.PointingAz[i]),
			Alt: astro.Degrees(90.0 - sample.PointingZd[i]),
		}, sample.MJD[i])
		assert.Equal(t, eq.RA.Deg(), sample.PointingRA[i])
		assert.Equal(t, eq.Dec.Deg(), sample.PointingDec[i])
	}

	// No direct live-time value in this format.
	_, ok := sample.EffObsTime()
	assert.True(t, ok) // derivable from mjd and delta_t
}

func TestLoader_DL2TableSubnode(t *testing.T) {
	rows := dl2DataRows()
	dir := t.TempDir()
	direct := filepath.Join(dir, "dl2_LST-1.Run02977.h5")
	nested := filepath.Join(dir, "dl2_LST-1.Run02978.h5")
	writeDL2Fixture(t, direct, &rows, len(rows), false)
	rows = dl2DataRows()
	writeDL2Fixture(t, nested, &rows, len(rows), true)

	l := New(astro.Roque, discardLogger(), nil)
	fromDirect, err := l.LoadEvents(direct, nil)
	require.NoError(t, err)
	fromNested, err := l.LoadEvents(nested, nil)
	require.NoError(t, err)

	assert.Equal(t, fromDirect, fromNested)
}

func TestLoader_DL2HorizontalOnlyFile(t *testing.T) {
	rows := []dl2DataHorizontalRow{
		{EventID: 1, TriggerType: 1, RecoAlt: 1.25, RecoAz: 1.75, Gammaness: 0.9,
			RecoEnergy: 0.8, DeltaT: 0.001, AzTel: 1.8, AltTel: 1.2, TriggerTime: 1609459200.0},
	}
	path := filepath.Join(t.TempDir(), "dl2_LST-1.Run02977.h5")
	writeDL2Fixture(t, path, &rows, len(rows), false)

	l := New(astro.Roque, discardLogger(), nil)
	sample, err := l.LoadEvents(path, nil)
	require.NoError(t, err)
	require.Equal(t, 1, sample.NumEvents())

	// Without reconstructed equatorial directions the event positions
	// are derived from reco_alt/reco_az at the trigger time.
	eq := astro.Roque.ToEquatorial(astro.Horizontal{
		Az:  astro.Degrees(1.75 * radToDeg),
		Alt: astro.Degrees(1.25 * radToDeg),
	}, sample.MJD[0])
	assert.Equal(t, []float64{eq.RA.Deg()}, sample.EventRA)
	assert.Equal(t, []float64{eq.Dec.Deg()}, sample.EventDec)
}

func TestLoader_DL2DragonTimeFile(t *testing.T) {
	rows := []dl2DataDragonRow{
		{EventID: 1, TriggerType: 1, RecoRA: 1.46, RecoDec: 0.384, Gammaness: 0.9,
			RecoEnergy: 0.8, DeltaT: 0.001, AzTel: 1.8, AltTel: 1.2, DragonTime: 1609459200.0},
	}
	path := filepath.Join(t.TempDir(), "dl2_LST-1.Run02977.h5")
	writeDL2Fixture(t, path, &rows, len(rows), false)

	l := New(astro.Roque, discardLogger(), nil)
	sample, err := l.LoadEvents(path, nil)
	require.NoError(t, err)

	require.Len(t, sample.MJD, 1)
	assert.Equal(t, 59215.0, sample.MJD[0])
}

func TestLoader_DL2PureMCFile(t *testing.T) {
	rows := []dl2MCRow{
		{EventID: 1, RecoRA: 1.46, RecoDec: 0.384, Gammaness: 0.95, RecoEnergy: 0.8,
			AzTel: 1.8, AltTel: 1.2, MCEnergy: 0.75, MCAlt: 1.25, MCAz: 1.75},
	}
	path := filepath.Join(t.TempDir(), "dl2_LST-1.Run09999.h5")
	writeDL2Fixture(t, path, &rows, len(rows), false)

	l := New(astro.Roque, discardLogger(), nil)
	sample, err := l.LoadEvents(path, nil)
	require.NoError(t, err)

	// Without a trigger time there is no time scale: no arrival times
	// and no equatorial pointing.
	require.Equal(t, 1, sample.NumEvents())
	assert.Empty(t, sample.MJD)
	assert.Empty(t, sample.PointingRA)
	assert.Empty(t, sample.PointingDec)

	assert.Equal(t, []float64{1.46 * radToDeg}, sample.EventRA)
	assert.Equal(t, []float64{90.0 - 1.2*radToDeg}, sample.PointingZd)
}

func TestLoader_DL2SimulatedTriggerFile(t *testing.T) {
	rows := []dl2MCTriggerRow{
		{EventID: 1, RecoRA: 1.46, RecoDec: 0.384, Gammaness: 0.95, RecoEnergy: 0.8,
			AzTel: 1.8, AltTel: 1.2, TriggerTime: 1609459200.0,
			MCEnergy: 0.75, MCAlt: 1.25, MCAz: 1.75},
		{EventID: 2, RecoRA: 1.47, RecoDec: 0.385, Gammaness: 0.9, RecoEnergy: 1.6,
			AzTel: 1.8, AltTel: 1.2, TriggerTime: 1609459260.0,
			MCEnergy: 2.5, MCAlt: 1.25, MCAz: 1.75},
	}
	path := filepath.Join(t.TempDir(), "dl2_LST-1.Run09999.h5")
	writeDL2Fixture(t, path, &rows, len(rows), false)

	l := New(astro.Roque, discardLogger(), nil)
	sample, err := l.LoadEvents(path, nil)
	require.NoError(t, err)

	// Simulation with a simulated trigger gets the full time treatment.
	require.Equal(t, 2, sample.NumEvents())
	require.Len(t, sample.MJD, 2)
	assert.Equal(t, 59215.0, sample.MJD[0])
	assert.Len(t, sample.PointingRA, 2)

	// The Monte-Carlo truth columns stay visible to the row filter.
	expr, err := cuts.Compile("true_energy > 1.0")
	require.NoError(t, err)
	filtered, err := l.LoadEvents(path, expr)
	require.NoError(t, err)
	require.Equal(t, 1, filtered.NumEvents())
	assert.Equal(t, []float64{1.47 * radToDeg}, filtered.EventRA)
}

func TestLoader_DL2FiniteMaskDropsEventEverywhere(t *testing.T) {
	rows := dl2DataRows()
	rows = append(rows, dl2DataRow{
		EventID: 3, TriggerType: 1, RecoRA: 1.48, RecoDec: 0.386, Gammaness: 0.8,
		RecoEnergy: math.NaN(), DeltaT: 0.001, AzTel: 1.8, AltTel: 1.2,
		TriggerTime: 1609459320.0,
	})
	path := filepath.Join(t.TempDir(), "dl2_LST-1.Run02977.h5")
	writeDL2Fixture(t, path, &rows, len(rows), false)

	l := New(astro.Roque, discardLogger(), nil)
	sample, err := l.LoadEvents(path, nil)
	require.NoError(t, err)

	require.Equal(t, 2, sample.NumEvents())
	assert.Len(t, sample.MJD, 2)
	assert.Len(t, sample.PointingRA, 2)
}

func TestLoader_DL2Cuts(t *testing.T) {
	rows := dl2DataRows()
	path := filepath.Join(t.TempDir(), "dl2_LST-1.Run02977.h5")
	writeDL2Fixture(t, path, &rows, len(rows), false)

	expr, err := cuts.Compile("gammaness > 0.8")
	require.NoError(t, err)

	l := New(astro.Roque, discardLogger(), nil)
	sample, err := l.LoadEvents(path, expr)
	require.NoError(t, err)

	require.Equal(t, 1, sample.NumEvents())
	assert.Equal(t, []float64{0.9}, sample.Gammaness)
}

func TestLoader_DL2MissingTableDegrades(t *testing.T) {
	// A valid HDF5 file without the parameter table.
	path := filepath.Join(t.TempDir(), "dl2_LST-1.Run02977.h5")
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l := New(astro.Roque, discardLogger(), nil)
	sample, err := l.LoadEvents(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, sample.NumEvents())
	assert.Empty(t, sample.MJD)
}

func TestLoader_DL2GarbageContentIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dl2_LST-1.Run02977.h5")
	require.NoError(t, os.WriteFile(path, []byte("not an hdf5 file"), 0o644))

	l := New(astro.Roque, discardLogger(), nil)
	_, err := l.LoadEvents(path, nil)
	assert.Error(t, err)
}

func TestLoader_DL2Deterministic(t *testing.T) {
	rows := dl2DataRows()
	path := filepath.Join(t.TempDir(), "dl2_LST-1.Run02977.h5")
	writeDL2Fixture(t, path, &rows, len(rows), false)

	l := New(astro.Roque, discardLogger(), nil)
	first, err := l.LoadEvents(path, nil)
	require.NoError(t, err)
	second, err := l.LoadEvents(path, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
