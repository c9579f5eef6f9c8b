package loader

import (
	"fmt"

	"gonum.org/v1/hdf5"

	"github.com/vheastro/bkgdata/internal/astro"
	"github.com/vheastro/bkgdata/internal/cuts"
	"github.com/vheastro/bkgdata/internal/events"
	"github.com/vheastro/bkgdata/internal/metrics"
)

const (
	dl2TableKey   = "dl2/event/telescope/parameters/LST_LSTCam"
	dl2EnergyUnit = "TeV"
)

// The DL2 parameter tables come in a handful of member layouts: real
// data with trigger information, simulation with a simulated trigger
// time, pure simulation without one, and data whose reconstructed
// directions are given only in the horizontal frame. HDF5 compound
// reads fail when a requested member is absent, so each layout gets its
// own row struct and the loader tries them from the most specific to
// the most general.

type dl2MCTriggerRow struct {
	EventID     int64   `hdf5:"event_id"`
	RecoRA      float64 `hdf5:"reco_ra"`
	RecoDec     float64 `hdf5:"reco_dec"`
	Gammaness   float64 `hdf5:"gammaness"`
	RecoEnergy  float64 `hdf5:"reco_energy"`
	AzTel       float64 `hdf5:"az_tel"`
	AltTel      float64 `hdf5:"alt_tel"`
	TriggerTime float64 `hdf5:"trigger_time"`
	MCEnergy    float64 `hdf5:"mc_energy"`
	MCAlt       float64 `hdf5:"mc_alt"`
	MCAz        float64 `hdf5:"mc_az"`
}

type dl2MCRow struct {
	EventID    int64   `hdf5:"event_id"`
	RecoRA     float64 `hdf5:"reco_ra"`
	RecoDec    float64 `hdf5:"reco_dec"`
	Gammaness  float64 `hdf5:"gammaness"`
	RecoEnergy float64 `hdf5:"reco_energy"`
	AzTel      float64 `hdf5:"az_tel"`
	AltTel     float64 `hdf5:"alt_tel"`
	MCEnergy   float64 `hdf5:"mc_energy"`
	MCAlt      float64 `hdf5:"mc_alt"`
	MCAz       float64 `hdf5:"mc_az"`
}

type dl2DataRow struct {
	EventID     int64   `hdf5:"event_id"`
	TriggerType int64   `hdf5:"trigger_type"`
	RecoRA      float64 `hdf5:"reco_ra"`
	RecoDec     float64 `hdf5:"reco_dec"`
	Gammaness   float64 `hdf5:"gammaness"`
	RecoEnergy  float64 `hdf5:"reco_energy"`
	DeltaT      float64 `hdf5:"delta_t"`
	AzTel       float64 `hdf5:"az_tel"`
	AltTel      float64 `hdf5:"alt_tel"`
	TriggerTime float64 `hdf5:"trigger_time"`
}

type dl2DataHorizontalRow struct {
	EventID     int64   `hdf5:"event_id"`
	TriggerType int64   `hdf5:"trigger_type"`
	RecoAlt     float64 `hdf5:"reco_alt"`
	RecoAz      float64 `hdf5:"reco_az"`
	Gammaness   float64 `hdf5:"gammaness"`
	RecoEnergy  float64 `hdf5:"reco_energy"`
	DeltaT      float64 `hdf5:"delta_t"`
	AzTel       float64 `hdf5:"az_tel"`
	AltTel      float64 `hdf5:"alt_tel"`
	TriggerTime float64 `hdf5:"trigger_time"`
}

type dl2DataDragonRow struct {
	EventID     int64   `hdf5:"event_id"`
	TriggerType int64   `hdf5:"trigger_type"`
	RecoRA      float64 `hdf5:"reco_ra"`
	RecoDec     float64 `hdf5:"reco_dec"`
	Gammaness   float64 `hdf5:"gammaness"`
	RecoEnergy  float64 `hdf5:"reco_energy"`
	DeltaT      float64 `hdf5:"delta_t"`
	AzTel       float64 `hdf5:"az_tel"`
	AltTel      float64 `hdf5:"alt_tel"`
	DragonTime  float64 `hdf5:"dragon_time"`
}

// dl2Extract is the layout-independent result of one table read.
// Angles are still radians here; adaptDL2 converts to the canonical
// unit set.
type dl2Extract struct {
	cols     events.Columns
	unixTime []float64 // trigger (or dragon) timestamps; nil for pure MC
	recoHz   bool      // event directions given as reco_alt/reco_az
}

// loadDL2 reads an LST DL2 parameter table. Zenith distance is derived
// from the telescope altitude, and because DL2 records pointing only in
// the horizontal frame, the equatorial pointing is obtained through a
// per-event transform at the observatory location.
func (l *Loader) loadDL2(path string, expr *cuts.Expr) (*events.Sample, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dset, err := f.OpenDataset(dl2TableKey)
	if err != nil {
		// PyTables stores the rows one node below the key.
		dset, err = f.OpenDataset(dl2TableKey + "/table")
	}
	if err != nil {
		l.logger.Warn("file corrupted or missing the event table, returning empty arrays",
			"path", path, "table", dl2TableKey)
		l.metrics.IncFileProcessed(FormatLSTDL2.String(), metrics.OutcomeCorrupted)
		return events.EmptySample(dl2EnergyUnit), nil
	}
	defer dset.Close()

	n := dset.Space().SimpleExtentNPoints()
	if n == 0 {
		l.logger.Debug("event table is empty", "path", path)
		l.metrics.IncFileProcessed(FormatLSTDL2.String(), metrics.OutcomeOK)
		return events.EmptySample(dl2EnergyUnit), nil
	}

	ext, err := readDL2Table(dset, n)
	if err != nil {
		l.logger.Warn("file corrupted or missing expected columns, returning empty arrays",
			"path", path, "error", err)
		l.metrics.IncFileProcessed(FormatLSTDL2.String(), metrics.OutcomeCorrupted)
		return events.EmptySample(dl2EnergyUnit), nil
	}

	cols := l.adaptDL2(ext)

	sample, err := l.finalize(cols, expr, dl2EnergyUnit, nil)
	if err != nil {
		return nil, err
	}
	l.metrics.IncFileProcessed(FormatLSTDL2.String(), metrics.OutcomeOK)
	return sample, nil
}

// readDL2Table tries the known member layouts from the most specific to
// the most general and returns the first that the file satisfies.
func readDL2Table(dset *hdf5.Dataset, n int) (*dl2Extract, error) {
	if rows := make([]dl2MCTriggerRow, n); dset.Read(&rows) == nil {
		ext := &dl2Extract{cols: events.Columns{}, unixTime: make([]float64, n)}
		for i, r := range rows {
			appendDL2Common(ext.cols, r.EventID, r.RecoRA, r.RecoDec, r.Gammaness, r.RecoEnergy, r.AzTel, r.AltTel)
			appendCol(ext.cols, events.ColTrueEnergy, r.MCEnergy)
			appendCol(ext.cols, events.ColTrueZd, 90.0-r.MCAlt*radToDeg)
			appendCol(ext.cols, events.ColTrueAz, r.MCAz*radToDeg)
			ext.unixTime[i] = r.TriggerTime
		}
		return ext, nil
	}

	if rows := make([]dl2MCRow, n); dset.Read(&rows) == nil {
		ext := &dl2Extract{cols: events.Columns{}}
		for _, r := range rows {
			appendDL2Common(ext.cols, r.EventID, r.RecoRA, r.RecoDec, r.Gammaness, r.RecoEnergy, r.AzTel, r.AltTel)
			appendCol(ext.cols, events.ColTrueEnergy, r.MCEnergy)
			appendCol(ext.cols, events.ColTrueZd, 90.0-r.MCAlt*radToDeg)
			appendCol(ext.cols, events.ColTrueAz, r.MCAz*radToDeg)
		}
		return ext, nil
	}

	if rows := make([]dl2DataRow, n); dset.Read(&rows) == nil {
		ext := &dl2Extract{cols: events.Columns{}, unixTime: make([]float64, n)}
		for i, r := range rows {
			appendDL2Common(ext.cols, r.EventID, r.RecoRA, r.RecoDec, r.Gammaness, r.RecoEnergy, r.AzTel, r.AltTel)
			appendCol(ext.cols, events.ColTriggerPattern, float64(r.TriggerType))
			appendCol(ext.cols, events.ColDeltaT, r.DeltaT)
			ext.unixTime[i] = r.TriggerTime
		}
		return ext, nil
	}

	if rows := make([]dl2DataHorizontalRow, n); dset.Read(&rows) == nil {
		ext := &dl2Extract{cols: events.Columns{}, unixTime: make([]float64, n), recoHz: true}
		for i, r := range rows {
			appendCol(ext.cols, events.ColDAQEventNumber, float64(r.EventID))
			appendCol(ext.cols, events.ColTriggerPattern, float64(r.TriggerType))
			appendCol(ext.cols, "reco_alt", r.RecoAlt)
			appendCol(ext.cols, "reco_az", r.RecoAz)
			appendCol(ext.cols, events.ColGammaness, r.Gammaness)
			appendCol(ext.cols, events.ColEventEnergy, r.RecoEnergy)
			appendCol(ext.cols, events.ColDeltaT, r.DeltaT)
			appendCol(ext.cols, events.ColPointingAz, r.AzTel)
			appendCol(ext.cols, "alt_tel", r.AltTel)
			ext.unixTime[i] = r.TriggerTime
		}
		return ext, nil
	}

	if rows := make([]dl2DataDragonRow, n); dset.Read(&rows) == nil {
		ext := &dl2Extract{cols: events.Columns{}, unixTime: make([]float64, n)}
		for i, r := range rows {
			appendDL2Common(ext.cols, r.EventID, r.RecoRA, r.RecoDec, r.Gammaness, r.RecoEnergy, r.AzTel, r.AltTel)
			appendCol(ext.cols, events.ColTriggerPattern, float64(r.TriggerType))
			appendCol(ext.cols, events.ColDeltaT, r.DeltaT)
			ext.unixTime[i] = r.DragonTime
		}
		return ext, nil
	}

	return nil, fmt.Errorf("no known member layout matches table %q", dl2TableKey)
}

func appendDL2Common(cols events.Columns, eventID int64, recoRA, recoDec, gammaness, recoEnergy, azTel, altTel float64) {
	appendCol(cols, events.ColDAQEventNumber, float64(eventID))
	appendCol(cols, events.ColEventRA, recoRA)
	appendCol(cols, events.ColEventDec, recoDec)
	appendCol(cols, events.ColGammaness, gammaness)
	appendCol(cols, events.ColEventEnergy, recoEnergy)
	appendCol(cols, events.ColPointingAz, azTel)
	appendCol(cols, "alt_tel", altTel)
}

func appendCol(cols events.Columns, name string, v float64) {
	cols[name] = append(cols[name], v)
}

// adaptDL2 converts the raw radian columns into the canonical unit set,
// computes event MJDs from the trigger timestamps, and resolves the
// equatorial pointing (and, when needed, the equatorial event
// directions) through the horizontal frame at the observatory.
func (l *Loader) adaptDL2(ext *dl2Extract) events.Columns {
	cols := ext.cols

	for _, name := range []string{events.ColEventRA, events.ColEventDec, events.ColPointingAz, "alt_tel", "reco_alt", "reco_az"} {
		for i := range cols[name] {
			cols[name][i] *= radToDeg
		}
	}

	altTel := cols["alt_tel"]
	delete(cols, "alt_tel")

	zd := make([]float64, len(altTel))
	for i, alt := range altTel {
		zd[i] = 90.0 - alt
	}
	cols[events.ColPointingZd] = zd

	if ext.unixTime != nil {
		mjd := make([]float64, len(ext.unixTime))
		for i, t := range ext.unixTime {
			mjd[i] = astro.UnixToMJD(t)
		}
		cols[events.ColMJD] = mjd

		pointingRA := make([]float64, len(mjd))
		pointingDec := make([]float64, len(mjd))
		for i := range mjd {
			eq := l.loc.ToEquatorial(astro.Horizontal{
				Az:  astro.Degrees(cols[events.ColPointingAz][i]),
				Alt: astro.Degrees(altTel[i]),
			}, mjd[i])
			pointingRA[i] = eq.RA.Deg()
			pointingDec[i] = eq.Dec.Deg()
		}
		cols[events.ColPointingRA] = pointingRA
		cols[events.ColPointingDec] = pointingDec

		if ext.recoHz {
			recoAlt := cols["reco_alt"]
			recoAz := cols["reco_az"]
			delete(cols, "reco_alt")
			delete(cols, "reco_az")

			eventRA := make([]float64, len(mjd))
			eventDec := make([]float64, len(mjd))
			for i := range mjd {
				eq := l.loc.ToEquatorial(astro.Horizontal{
					Az:  astro.Degrees(recoAz[i]),
					Alt: astro.Degrees(recoAlt[i]),
				}, mjd[i])
				eventRA[i] = eq.RA.Deg()
				eventDec[i] = eq.Dec.Deg()
			}
			cols[events.ColEventRA] = eventRA
			cols[events.ColEventDec] = eventDec
		}
	}

	return cols
}
