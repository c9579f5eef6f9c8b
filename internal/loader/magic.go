package loader

import (
	"fmt"
	"strings"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/vheastro/bkgdata/internal/cuts"
	"github.com/vheastro/bkgdata/internal/events"
	"github.com/vheastro/bkgdata/internal/metrics"
)

const (
	magicEventsTree = "Events"
	magicEnergyUnit = "GeV"

	// Branch group present only in simulated (Monte-Carlo) files.
	magicMCPrefix = "MMcEvt_1"

	// Empirically calibrated azimuth-origin correction for MAGIC
	// Monte-Carlo directions. Instrument-specific; do not reuse for
	// other formats without verification.
	magicMCAzOffset = 180.0 - 7.0
)

// loadMagic reads a MAGIC SuperStar/Melibea ROOT ntuple. Real data
// carries per-event arrival times in the MTime branches; simulated
// files carry true directions in the MMcEvt branches instead and leave
// the arrival time column unpopulated.
func (l *Loader) loadMagic(path string, expr *cuts.Expr) (*events.Sample, error) {
	f, err := groot.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	obj, err := f.Get(magicEventsTree)
	if err != nil {
		// Corrupted or missing the event tree: degrade to empty arrays.
		l.logger.Warn("file corrupted or missing the event tree, returning empty arrays",
			"path", path)
		l.metrics.IncFileProcessed(FormatMagicRoot.String(), metrics.OutcomeCorrupted)
		return events.EmptySample(magicEnergyUnit), nil
	}

	tree, ok := obj.(rtree.Tree)
	if !ok {
		l.logger.Warn("file corrupted or missing the event tree, returning empty arrays",
			"path", path, "object", magicEventsTree)
		l.metrics.IncFileProcessed(FormatMagicRoot.String(), metrics.OutcomeCorrupted)
		return events.EmptySample(magicEnergyUnit), nil
	}

	isMC := magicHasMCBranches(tree)

	var row struct {
		daqEvtNumber uint32
		timeDiff     float32
		dirRA        float32
		dirDec       float32
		energy       float32
		zd           float32
		az           float32
		ra           float32
		dec          float32
		hadronness   float32

		// Data only.
		mjd      uint32
		milliSec int32
		nanoSec  uint32

		// Monte-Carlo only.
		mcEnergy float32
		mcTheta  float32
		mcPhi    float32
	}

	rvars := []rtree.ReadVar{
		{Name: "MRawEvtHeader_1.fDAQEvtNumber", Value: &row.daqEvtNumber},
		{Name: "MRawEvtHeader_1.fTimeDiff", Value: &row.timeDiff},
		{Name: "MStereoParDisp.fDirectionRA", Value: &row.dirRA},
		{Name: "MStereoParDisp.fDirectionDec", Value: &row.dirDec},
		{Name: "MEnergyEst.fEnergy", Value: &row.energy},
		{Name: "MPointingPos_1.fZd", Value: &row.zd},
		{Name: "MPointingPos_1.fAz", Value: &row.az},
		{Name: "MPointingPos_1.fRa", Value: &row.ra},
		{Name: "MPointingPos_1.fDec", Value: &row.dec},
		{Name: "MHadronness.fHadronness", Value: &row.hadronness},
	}
	if isMC {
		rvars = append(rvars,
			rtree.ReadVar{Name: "MMcEvt_1.fEnergy", Value: &row.mcEnergy},
			rtree.ReadVar{Name: "MMcEvt_1.fTheta", Value: &row.mcTheta},
			rtree.ReadVar{Name: "MMcEvt_1.fPhi", Value: &row.mcPhi},
		)
	} else {
		rvars = append(rvars,
			rtree.ReadVar{Name: "MTime_1.fMjd", Value: &row.mjd},
			rtree.ReadVar{Name: "MTime_1.fTime.fMilliSec", Value: &row.milliSec},
			rtree.ReadVar{Name: "MTime_1.fNanoSec", Value: &row.nanoSec},
		)
	}

	r, err := rtree.NewReader(tree, rvars)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer r.Close()

	n := int(tree.Entries())
	var (
		daq       = make([]float64, 0, n)
		deltaT    = make([]float64, 0, n)
		eventRA   = make([]float64, 0, n)
		eventDec  = make([]float64, 0, n)
		energy    = make([]float64, 0, n)
		zd        = make([]float64, 0, n)
		az        = make([]float64, 0, n)
		ra        = make([]float64, 0, n)
		dec       = make([]float64, 0, n)
		gammaness = make([]float64, 0, n)
		mjd       = make([]float64, 0)
		trueEn    []float64
		trueZd    []float64
		trueAz    []float64
	)

	err = r.Read(func(ctx rtree.RCtx) error {
		daq = append(daq, float64(row.daqEvtNumber))
		deltaT = append(deltaT, float64(row.timeDiff))
		eventRA = append(eventRA, float64(row.dirRA)*hourToDeg)
		eventDec = append(eventDec, float64(row.dirDec))
		energy = append(energy, float64(row.energy))
		zd = append(zd, float64(row.zd))
		az = append(az, float64(row.az))
		ra = append(ra, float64(row.ra)*hourToDeg)
		dec = append(dec, float64(row.dec))
		gammaness = append(gammaness, 1.0-float64(row.hadronness))

		if isMC {
			trueEn = append(trueEn, float64(row.mcEnergy))
			trueZd = append(trueZd, float64(row.mcTheta)*radToDeg)
			// Transformation from Monte-Carlo to the usual azimuth origin.
			trueAz = append(trueAz, -(float64(row.mcPhi)*radToDeg - magicMCAzOffset))
		} else {
			mjd = append(mjd, float64(row.mjd)+
				(float64(row.milliSec)/1e3+float64(row.nanoSec)/1e9)/86400.0)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cols := events.Columns{
		events.ColDAQEventNumber: daq,
		events.ColDeltaT:         deltaT,
		events.ColEventRA:        eventRA,
		events.ColEventDec:       eventDec,
		events.ColEventEnergy:    energy,
		events.ColPointingZd:     zd,
		events.ColPointingAz:     az,
		events.ColPointingRA:     ra,
		events.ColPointingDec:    dec,
		events.ColGammaness:      gammaness,
		events.ColMJD:            mjd,
	}
	if isMC {
		cols[events.ColTrueEnergy] = trueEn
		cols[events.ColTrueZd] = trueZd
		cols[events.ColTrueAz] = trueAz
	}

	sample, err := l.finalize(cols, expr, magicEnergyUnit, nil)
	if err != nil {
		return nil, err
	}
	l.metrics.IncFileProcessed(FormatMagicRoot.String(), metrics.OutcomeOK)
	return sample, nil
}

// magicHasMCBranches reports whether the tree carries the Monte-Carlo
// event branch group.
func magicHasMCBranches(tree rtree.Tree) bool {
	for _, b := range tree.Branches() {
		if strings.HasPrefix(b.Name(), magicMCPrefix) {
			return true
		}
	}
	return false
}
