package peaklist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/psmload/pkg/core"
)

// IDFormat is the spectrum-identifier addressing scheme declared for a file.
type IDFormat int

const (
	IDFormatUnknown          IDFormat = iota // generic fallback
	IDFormatMultiplePeakList                 // index=N, zero-based
	IDFormatSinglePeakList                   // one spectrum per file
	IDFormatScanNumber                       // scan=N
	IDFormatThermo                           // controllerType=0 controllerNumber=1 scan=N
	IDFormatMzMLUnique                       // mzML spectrum id, delegated
)

var idFormatAccessions = map[IDFormat]string{
	IDFormatMultiplePeakList: "MS:1000774",
	IDFormatSinglePeakList:   "MS:1000775",
	IDFormatScanNumber:       "MS:1000776",
	IDFormatThermo:           "MS:1000768",
	IDFormatMzMLUnique:       "MS:1001530",
}

var idFormatNames = map[IDFormat]string{
	IDFormatUnknown:          "fallback",
	IDFormatMultiplePeakList: "index",
	IDFormatSinglePeakList:   "single",
	IDFormatScanNumber:       "scan",
	IDFormatThermo:           "thermo",
	IDFormatMzMLUnique:       "native",
}

func (f IDFormat) String() string {
	if n, ok := idFormatNames[f]; ok {
		return n
	}
	return "fallback"
}

// Accession returns the PSI-MS accession of the format, or "".
func (f IDFormat) Accession() string {
	return idFormatAccessions[f]
}

// ParseIDFormat maps an accession or short name to an IDFormat. Anything
// unrecognized resolves to IDFormatUnknown, which selects the generic
// fallback.
func ParseIDFormat(s string) IDFormat {
	v := strings.TrimSpace(s)
	for f, acc := range idFormatAccessions {
		if strings.EqualFold(v, acc) {
			return f
		}
	}
	switch strings.ToLower(v) {
	case "index", "multiple", "multiple_peak_list":
		return IDFormatMultiplePeakList
	case "single", "single_peak_list":
		return IDFormatSinglePeakList
	case "scan", "scan_number":
		return IDFormatScanNumber
	case "thermo":
		return IDFormatThermo
	case "native", "mzml", "mzml_unique":
		return IDFormatMzMLUnique
	}
	return IDFormatUnknown
}

// KeyKind says how a ScanKey addresses the index.
type KeyKind int

const (
	KeyIndex      KeyKind = iota // position in the file, zero-based
	KeyScanNumber                // declared scan number
	KeyNativeID                  // structured container id, looked up verbatim
)

// ScanKey is a resolved spectrum address.
type ScanKey struct {
	Kind     KeyKind
	Number   int
	NativeID string
}

func (k ScanKey) String() string {
	switch k.Kind {
	case KeyScanNumber:
		return "scan " + strconv.Itoa(k.Number)
	case KeyNativeID:
		return "id " + strconv.Quote(k.NativeID)
	default:
		return "index " + strconv.Itoa(k.Number)
	}
}

var (
	indexMarkerRe  = regexp.MustCompile(`(?:index|query)=(\d+)`)
	scanAnchoredRe = regexp.MustCompile(`^scan=(\d+)$`)
	scanMarkerRe   = regexp.MustCompile(`scan=(\d+)`)
	digitsRe       = regexp.MustCompile(`\d+`)
)

// ResolveSpectrumID translates a raw identifier under format f into a key
// the index understands. canDelegate reports whether the file can look up
// native identifiers itself (structured containers).
func ResolveSpectrumID(raw string, f IDFormat, canDelegate bool) (ScanKey, error) {
	id := strings.TrimSpace(raw)
	bad := func() error {
		return &core.SpectrumIDError{RawID: raw, Format: f.String()}
	}

	switch f {
	case IDFormatMultiplePeakList:
		if m := indexMarkerRe.FindStringSubmatch(id); m != nil {
			return indexKey(m[1], bad)
		}
		return indexKey(id, bad)

	case IDFormatSinglePeakList:
		return ScanKey{Kind: KeyIndex, Number: 0}, nil

	case IDFormatScanNumber:
		m := scanAnchoredRe.FindStringSubmatch(id)
		if m == nil {
			return ScanKey{}, bad()
		}
		return scanKey(m[1], bad)

	case IDFormatThermo:
		m := scanMarkerRe.FindStringSubmatch(id)
		if m == nil {
			return ScanKey{}, bad()
		}
		return scanKey(m[1], bad)

	case IDFormatMzMLUnique:
		if canDelegate {
			if id == "" {
				return ScanKey{}, bad()
			}
			return ScanKey{Kind: KeyNativeID, NativeID: id}, nil
		}
	}

	runs := digitsRe.FindAllString(id, -1)
	if len(runs) == 0 {
		return ScanKey{}, &core.SpectrumIDError{RawID: raw}
	}
	return scanKey(runs[len(runs)-1], func() error { return &core.SpectrumIDError{RawID: raw} })
}

func indexKey(s string, bad func() error) (ScanKey, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return ScanKey{}, bad()
	}
	return ScanKey{Kind: KeyIndex, Number: n}, nil
}

func scanKey(s string, bad func() error) (ScanKey, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return ScanKey{}, fmt.Errorf("%w: %v", bad(), err)
	}
	return ScanKey{Kind: KeyScanNumber, Number: n}, nil
}
