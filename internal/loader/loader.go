// Package loader parses the supported observation-run file formats into
// the unified event sample model. Each format variant carries its own
// cheap path-compatibility check, an observation-ID filename parser and
// a load routine; dispatch picks the single compatible variant from the
// file name alone, without reading file content.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/vheastro/bkgdata/internal/astro"
	"github.com/vheastro/bkgdata/internal/cuts"
	"github.com/vheastro/bkgdata/internal/events"
	"github.com/vheastro/bkgdata/internal/metrics"
	"github.com/vheastro/bkgdata/internal/runs"
)

var (
	// ErrUnsupportedFormat is returned when no format variant is
	// compatible with a file path. This aborts processing of the file.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNoObsID is returned when a file name does not match the
	// observation-ID pattern of its format. A run cannot be tracked
	// without an ID, so this also aborts processing of the file.
	ErrNoObsID = errors.New("missing observation ID")
)

// Format identifies one of the supported on-disk run file formats.
type Format int

const (
	FormatUnknown Format = iota
	FormatMagicRoot
	FormatLSTDL2
	FormatLSTDL3
)

// String implements fmt.Stringer.
func (f Format) String() string {
	switch f {
	case FormatMagicRoot:
		return "magic-root"
	case FormatLSTDL2:
		return "lst-dl2"
	case FormatLSTDL3:
		return "lst-dl3"
	default:
		return "unknown"
	}
}

var (
	magicObsIDPattern = regexp.MustCompile(`.*\d+_(\d+)_\w_[0-9\w]+-W[\d.+]+\.root`)
	dl2ObsIDPattern   = regexp.MustCompile(`.*dl2_LST-1.Run(\d+).h5`)
	dl3ObsIDPattern   = regexp.MustCompile(`.*dl3_LST-1\.Run(\d+)\.fits(\.gz)?`)
)

// DetectFormat returns the format variant compatible with the path.
// Compatibility is decided on the file name suffix only.
func DetectFormat(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case filepath.Ext(lower) == ".root":
		return FormatMagicRoot
	case filepath.Ext(lower) == ".h5":
		return FormatLSTDL2
	case strings.HasSuffix(lower, ".fits") || strings.HasSuffix(lower, ".fits.gz"):
		return FormatLSTDL3
	default:
		return FormatUnknown
	}
}

// ObsID parses the observation ID out of a run file name using the
// pattern of its format. An unsupported path or a name without the
// ID group is a fatal input error.
func ObsID(path string) (int64, error) {
	var pattern *regexp.Regexp
	switch DetectFormat(path) {
	case FormatMagicRoot:
		pattern = magicObsIDPattern
	case FormatLSTDL2:
		pattern = dl2ObsIDPattern
	case FormatLSTDL3:
		pattern = dl3ObsIDPattern
	default:
		return 0, fmt.Errorf("unsupported file format for %q: %w", path, ErrUnsupportedFormat)
	}

	m := pattern.FindStringSubmatch(path)
	if m == nil {
		return 0, fmt.Errorf("can not find observation ID in %q: %w", path, ErrNoObsID)
	}

	obsID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("can not find observation ID in %q: %w", path, ErrNoObsID)
	}

	return obsID, nil
}

// Loader parses run files into event samples. Loads are self-contained
// blocking operations without shared mutable state, so one Loader may
// be used from many goroutines at once.
type Loader struct {
	loc     astro.EarthLocation
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a loader that resolves sky coordinates at the given
// observatory location. A nil metrics sink disables instrumentation.
func New(loc astro.EarthLocation, logger *slog.Logger, m *metrics.Metrics) *Loader {
	return &Loader{loc: loc, logger: logger, metrics: m}
}

// LoadEvents opens the file, applies the optional row filter, and
// returns the normalized event sample. A file that is openable but
// missing its expected data structure degrades to an empty sample with
// a logged warning; an unsupported path is a fatal error.
func (l *Loader) LoadEvents(path string, expr *cuts.Expr) (*events.Sample, error) {
	switch DetectFormat(path) {
	case FormatMagicRoot:
		return l.loadMagic(path, expr)
	case FormatLSTDL2:
		return l.loadDL2(path, expr)
	case FormatLSTDL3:
		return l.loadDL3(path, expr)
	default:
		return nil, fmt.Errorf("unsupported file format for %q: %w", path, ErrUnsupportedFormat)
	}
}

// Summarize loads one run file and derives its run summary. The loaded
// sample is returned alongside so callers can keep it without a second
// read.
func (l *Loader) Summarize(path string, expr *cuts.Expr) (*runs.Summary, *events.Sample, error) {
	obsID, err := ObsID(path)
	if err != nil {
		return nil, nil, err
	}

	sample, err := l.LoadEvents(path, expr)
	if err != nil {
		return nil, nil, err
	}

	return runs.Build(obsID, path, sample, l.loc), sample, nil
}

// finalize applies the row filter and the finite mask to the assembled
// working columns and builds the sample. Rows with a non-finite value
// in any populated column are silently dropped; that is a normalization
// step, not a failure. With zero rows there is nothing to filter, so
// the row filter is not evaluated at all; a filter referencing a column
// the format never populates only fails on files that have events.
func (l *Loader) finalize(cols events.Columns, expr *cuts.Expr, energyUnit string, effObsTime *float64) (*events.Sample, error) {
	if cols.NumRows() == 0 {
		return events.NewSample(cols, energyUnit, effObsTime), nil
	}

	loaded := cols.NumRows()
	cutMask, err := expr.Mask(cols)
	if err != nil {
		return nil, err
	}
	cols = cols.Select(cutMask)
	afterCuts := cols.NumRows()
	cols = cols.Select(cols.FiniteMask())
	kept := cols.NumRows()

	l.metrics.AddEventsDropped(metrics.DropCuts, loaded-afterCuts)
	l.metrics.AddEventsDropped(metrics.DropNonFinite, afterCuts-kept)
	l.metrics.AddEventsLoaded(kept)

	return events.NewSample(cols, energyUnit, effObsTime), nil
}
