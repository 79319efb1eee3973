package peaklist

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/psmload/pkg/core"
)

// CV terms used when reading mzML spectra.
const (
	cvZlibCompression = "MS:1000574"
	cvMzArray         = "MS:1000514"
	cvIntensityArray  = "MS:1000515"
	cvFloat64         = "MS:1000523"
	cvSelectedIonMz   = "MS:1000744"
	cvChargeState     = "MS:1000041"
)

// Numpress compressions are not decoded.
var numpressTerms = map[string]bool{
	"MS:1002312": true, "MS:1002313": true, "MS:1002314": true,
	"MS:1002746": true, "MS:1002747": true, "MS:1002748": true,
}

type cvParam struct {
	Accession string `xml:"accession,attr"`
	Name      string `xml:"name,attr"`
	Value     string `xml:"value,attr"`
}

type mzmlSpectrum struct {
	Index              int       `xml:"index,attr"`
	ID                 string    `xml:"id,attr"`
	DefaultArrayLength int       `xml:"defaultArrayLength,attr"`
	SelectedIons       []cvParam `xml:"precursorList>precursor>selectedIonList>selectedIon>cvParam"`
	BinaryDataArrays   []struct {
		CvPar  []cvParam `xml:"cvParam"`
		Binary string    `xml:"binary"`
	} `xml:"binaryDataArrayList>binaryDataArray"`
}

// mzmlFile is an mzML container decoded once and addressed by position,
// native id or the scan number embedded in the native id.
type mzmlFile struct {
	spectra []mzmlSpectrum
	byID    map[string]int
	byScan  map[int]int
}

// readMzML decodes every spectrum element of an mzML (or indexedmzML)
// document. Binary arrays stay encoded until a scan is requested.
func readMzML(r io.Reader) (*mzmlFile, error) {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel

	f := &mzmlFile{
		byID:   make(map[string]int),
		byScan: make(map[int]int),
	}
	for {
		t, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		start, ok := t.(xml.StartElement)
		if !ok || start.Name.Local != "spectrum" {
			continue
		}
		var s mzmlSpectrum
		if err := d.DecodeElement(&s, &start); err != nil {
			return nil, err
		}
		pos := len(f.spectra)
		f.spectra = append(f.spectra, s)
		f.byID[s.ID] = pos
		if m := scanMarkerRe.FindStringSubmatch(s.ID); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				if _, dup := f.byScan[n]; !dup {
					f.byScan[n] = pos
				}
			}
		}
	}
	if len(f.spectra) == 0 {
		return nil, core.ErrUnsupportedFormat
	}
	return f, nil
}

func (f *mzmlFile) lookup(key ScanKey) (int, bool) {
	switch key.Kind {
	case KeyIndex:
		if key.Number >= 0 && key.Number < len(f.spectra) {
			return key.Number, true
		}
	case KeyScanNumber:
		i, ok := f.byScan[key.Number]
		return i, ok
	case KeyNativeID:
		i, ok := f.byID[key.NativeID]
		return i, ok
	}
	return 0, false
}

// peaks decodes the m/z and intensity arrays of spectrum i.
func (f *mzmlFile) peaks(i int) ([]core.Peak, error) {
	s := &f.spectra[i]
	p := make([]core.Peak, s.DefaultArrayLength)
	for _, arr := range s.BinaryDataArrays {
		zlibCompressed, bits64, isMz, isIntensity := false, false, false, false
		for _, cv := range arr.CvPar {
			switch {
			case cv.Accession == cvZlibCompression:
				zlibCompressed = true
			case cv.Accession == cvMzArray:
				isMz = true
			case cv.Accession == cvIntensityArray:
				isIntensity = true
			case cv.Accession == cvFloat64:
				bits64 = true
			case numpressTerms[cv.Accession]:
				return nil, fmt.Errorf("%w: numpress compression %s", core.ErrUnsupportedFormat, cv.Accession)
			}
		}
		if !isMz && !isIntensity {
			continue
		}
		values, err := decodeBinary(arr.Binary, zlibCompressed, bits64)
		if err != nil {
			return nil, fmt.Errorf("spectrum %q: %w", s.ID, err)
		}
		if len(values) > len(p) {
			p = append(p, make([]core.Peak, len(values)-len(p))...)
		}
		for j, v := range values {
			if isMz {
				p[j].MZ = v
			} else {
				p[j].Intensity = v
			}
		}
	}
	return p, nil
}

// precursor returns the first selected ion m/z and charge, zero if absent.
func (f *mzmlFile) precursor(i int) (float64, int) {
	var mz float64
	var charge int
	for _, cv := range f.spectra[i].SelectedIons {
		switch cv.Accession {
		case cvSelectedIonMz:
			if mz == 0 {
				mz, _ = strconv.ParseFloat(cv.Value, 64)
			}
		case cvChargeState:
			if charge == 0 {
				charge, _ = strconv.Atoi(cv.Value)
			}
		}
	}
	return mz, charge
}

func decodeBinary(encoded string, zlibCompressed, bits64 bool) ([]float64, error) {
	data, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace([]byte(encoded))))
	if err != nil {
		return nil, err
	}
	if zlibCompressed {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer z.Close()
		if data, err = io.ReadAll(z); err != nil {
			return nil, err
		}
	}

	if bits64 {
		out := make([]float64, len(data)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return out, nil
	}
	out := make([]float64, len(data)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return out, nil
}
