package loader

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/klauspost/compress/gzip"

	"github.com/vheastro/bkgdata/internal/astro"
	"github.com/vheastro/bkgdata/internal/cuts"
	"github.com/vheastro/bkgdata/internal/events"
	"github.com/vheastro/bkgdata/internal/metrics"
)

const (
	dl3EventsHDU  = "EVENTS"
	dl3EnergyUnit = "TeV"

	// DL3 event timestamps count seconds from the LST reference epoch,
	// 2018-10-01T00:00:00 UTC.
	lstEpochUnix = 1538352000.0
)

// dl3Columns maps the EVENTS table columns onto the canonical schema.
// TIME lands on a working name first: the raw values are epoch-relative
// seconds and only become MJDs in adaptDL3.
var dl3Columns = map[string]string{
	"EVENT_ID":  events.ColDAQEventNumber,
	"RA":        events.ColEventRA,
	"DEC":       events.ColEventDec,
	"GAMMANESS": events.ColGammaness,
	"ENERGY":    events.ColEventEnergy,
	"TIME":      "time",
}

// dl3HeaderKeys are the EVENTS header keywords the loader consumes.
var dl3HeaderKeys = []string{"RA_PNT", "DEC_PNT", "LIVETIME"}

// dl3Extract is the raw content of one EVENTS extension before unit and
// frame conversion.
type dl3Extract struct {
	cols     events.Columns
	raPnt    float64
	decPnt   float64
	liveTime float64
}

// loadDL3 reads an LST DL3 event list. The equatorial pointing is a
// single header position valid for the whole run; its horizontal
// representation drifts with the sky, so the pointing az/zd columns are
// obtained by transforming the header position at each event time. The
// live time is taken directly from the header rather than derived from
// event timestamps. A structurally intact FITS file missing the EVENTS
// extension, one of its columns or one of the header keys degrades to
// an empty sample; a file that does not parse as FITS at all is an
// error.
func (l *Loader) loadDL3(path string, expr *cuts.Expr) (*events.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	ff, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer ff.Close()

	ext, err := extractDL3(ff)
	if err != nil {
		l.logger.Warn("file corrupted or missing the events extension, returning empty arrays",
			"path", path, "error", err)
		l.metrics.IncFileProcessed(FormatLSTDL3.String(), metrics.OutcomeCorrupted)
		return events.EmptySample(dl3EnergyUnit), nil
	}

	cols := l.adaptDL3(ext)
	liveTime := ext.liveTime

	sample, err := l.finalize(cols, expr, dl3EnergyUnit, &liveTime)
	if err != nil {
		return nil, err
	}
	l.metrics.IncFileProcessed(FormatLSTDL3.String(), metrics.OutcomeOK)
	return sample, nil
}

// extractDL3 locates the EVENTS extension and pulls out the consumed
// columns and header keywords. Any missing piece makes the whole file
// count as corrupted; there is no partially populated result.
func extractDL3(f *fitsio.File) (*dl3Extract, error) {
	var tbl *fitsio.Table
	for _, hdu := range f.HDUs() {
		if t, ok := hdu.(*fitsio.Table); ok && t.Name() == dl3EventsHDU {
			tbl = t
			break
		}
	}
	if tbl == nil {
		return nil, fmt.Errorf("missing %q extension", dl3EventsHDU)
	}

	hdr := tbl.Header()
	keys := make(map[string]float64, len(dl3HeaderKeys))
	for _, name := range dl3HeaderKeys {
		card := hdr.Get(name)
		if card == nil {
			return nil, fmt.Errorf("missing header key %q", name)
		}
		v, ok := asFloat(card.Value)
		if !ok {
			return nil, fmt.Errorf("header key %q is not numeric", name)
		}
		keys[name] = v
	}

	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, fmt.Errorf("read %q rows: %w", dl3EventsHDU, err)
	}
	defer rows.Close()

	ext := &dl3Extract{
		cols:     events.Columns{},
		raPnt:    keys["RA_PNT"],
		decPnt:   keys["DEC_PNT"],
		liveTime: keys["LIVETIME"],
	}
	for rows.Next() {
		row := make(map[string]interface{}, len(dl3Columns))
		for src := range dl3Columns {
			row[src] = nil
		}
		if err := rows.Scan(&row); err != nil {
			return nil, fmt.Errorf("scan %q row: %w", dl3EventsHDU, err)
		}
		for src, name := range dl3Columns {
			v, ok := asFloat(row[src])
			if !ok {
				return nil, fmt.Errorf("column %q missing or not numeric", src)
			}
			appendCol(ext.cols, name, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %q rows: %w", dl3EventsHDU, err)
	}

	return ext, nil
}

// adaptDL3 shifts the raw timestamps onto the MJD scale and expands the
// per-run header pointing into per-event pointing columns.
func (l *Loader) adaptDL3(ext *dl3Extract) events.Columns {
	cols := ext.cols

	raw := cols["time"]
	delete(cols, "time")

	n := len(raw)
	mjd := make([]float64, n)
	pointingRA := make([]float64, n)
	pointingDec := make([]float64, n)
	pointingAz := make([]float64, n)
	pointingZd := make([]float64, n)

	pnt := astro.Equatorial{RA: astro.Degrees(ext.raPnt), Dec: astro.Degrees(ext.decPnt)}
	for i, t := range raw {
		mjd[i] = astro.UnixToMJD(t + lstEpochUnix)
		hz := l.loc.ToHorizontal(pnt, mjd[i])
		pointingAz[i] = hz.Az.Deg()
		pointingZd[i] = 90.0 - hz.Alt.Deg()
		pointingRA[i] = ext.raPnt
		pointingDec[i] = ext.decPnt
	}

	cols[events.ColMJD] = mjd
	cols[events.ColPointingRA] = pointingRA
	cols[events.ColPointingDec] = pointingDec
	cols[events.ColPointingAz] = pointingAz
	cols[events.ColPointingZd] = pointingZd

	return cols
}

// asFloat widens any numeric FITS cell or header value to float64.
func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
