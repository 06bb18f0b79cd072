package extract

import (
	"errors"
	"fmt"

	"SraDump/pkg/archive"
)

// ConfigError is a pre-flight configuration failure: the run never starts
// and the process exits with the configuration status code.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// Configf builds a ConfigError.
func Configf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// probeWindow is how many leading spots pre-flight checks inspect.
const probeWindow = 100

// ProbeLayout returns the segment layout of the first readable spot at or
// after start. Used to validate the selection before workers launch.
func ProbeLayout(arch archive.Archive, start uint64) ([]archive.SegmentInfo, error) {
	cur, err := arch.NewCursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	end := arch.SpotCount()
	for spot := start; spot < end && spot < start+probeWindow; spot++ {
		layout, err := cur.Layout(spot)
		if err == nil {
			return layout, nil
		}
		var fault *archive.FatalFault
		if errors.As(err, &fault) {
			return nil, err
		}
	}
	return nil, Configf("no readable spot in the first %d spots", probeWindow)
}

// ValidateSelection checks an explicit selection against the probed layout.
func ValidateSelection(sel Selection, layout []archive.SegmentInfo) error {
	if sel.All {
		return nil
	}
	for _, idx := range sel.Indices {
		if idx >= len(layout) {
			return Configf("segment index %d out of range (archive spots have %d segments)", idx, len(layout))
		}
	}
	return nil
}

// ProbeLengths scans up to probeWindow spots from start and reports the
// constant length per segment index, or -1 where the length varies. The
// fixed packed-binary flavor requires constant lengths.
func ProbeLengths(arch archive.Archive, start uint64) ([]int, error) {
	cur, err := arch.NewCursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var lengths []int
	end := arch.SpotCount()
	for spot := start; spot < end && spot < start+probeWindow; spot++ {
		layout, err := cur.Layout(spot)
		if err != nil {
			var fault *archive.FatalFault
			if errors.As(err, &fault) {
				return nil, err
			}
			continue
		}
		for _, info := range layout {
			for len(lengths) <= info.Index {
				lengths = append(lengths, 0)
			}
			switch lengths[info.Index] {
			case 0:
				lengths[info.Index] = info.Length
			case info.Length:
			default:
				lengths[info.Index] = -1
			}
		}
	}
	return lengths, nil
}
