// Package mzid streams identification items out of mzIdentML documents.
//
// The sequence, analysis and input sections are decoded up front; the
// SpectrumIdentificationResult elements are then decoded one at a time so
// memory use does not grow with the number of results.
package mzid

import (
	"strconv"
	"strings"
)

// PSI-MS terms read from mzIdentML.
const (
	cvCrossLinkDonor      = "MS:1002509"
	cvCrossLinkAcceptor   = "MS:1002510"
	cvCrossLinkSII        = "MS:1002511"
	cvUnknownModification = "MS:1001460"
)

type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
	UnitName      string `xml:"unitName,attr"`
}

type userParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type sequenceCollection struct {
	DBSequences      []dbSequence      `xml:"DBSequence"`
	Peptides         []peptide         `xml:"Peptide"`
	PeptideEvidences []peptideEvidence `xml:"PeptideEvidence"`
}

type dbSequence struct {
	ID        string `xml:"id,attr"`
	Accession string `xml:"accession,attr"`
}

type peptide struct {
	ID              string         `xml:"id,attr"`
	PeptideSequence string         `xml:"PeptideSequence"`
	Modifications   []modification `xml:"Modification"`
}

type modification struct {
	Location              int       `xml:"location,attr"`
	Residues              string    `xml:"residues,attr"`
	MonoisotopicMassDelta string    `xml:"monoisotopicMassDelta,attr"`
	CvPar                 []cvParam `xml:"cvParam"`
}

type peptideEvidence struct {
	ID            string `xml:"id,attr"`
	PeptideRef    string `xml:"peptide_ref,attr"`
	DBSequenceRef string `xml:"dBSequence_ref,attr"`
	Start         string `xml:"start,attr"`
	IsDecoy       bool   `xml:"isDecoy,attr"`
}

type analysisCollection struct {
	SpectrumIdentifications []struct {
		ListRef     string `xml:"spectrumIdentificationList_ref,attr"`
		ProtocolRef string `xml:"spectrumIdentificationProtocol_ref,attr"`
	} `xml:"SpectrumIdentification"`
}

type analysisProtocolCollection struct {
	Protocols []protocol `xml:"SpectrumIdentificationProtocol"`
}

type protocol struct {
	ID                     string      `xml:"id,attr"`
	AdditionalCvParams     []cvParam   `xml:"AdditionalSearchParams>cvParam"`
	AdditionalUserParams   []userParam `xml:"AdditionalSearchParams>userParam"`
	FragmentToleranceTerms []cvParam   `xml:"FragmentTolerance>cvParam"`
}

type inputs struct {
	SpectraData []spectraData `xml:"SpectraData"`
}

type spectraData struct {
	ID               string    `xml:"id,attr"`
	Location         string    `xml:"location,attr"`
	FileFormat       []cvParam `xml:"FileFormat>cvParam"`
	SpectrumIDFormat []cvParam `xml:"SpectrumIDFormat>cvParam"`
}

type spectrumIdentificationResult struct {
	ID             string                       `xml:"id,attr"`
	SpectrumID     string                       `xml:"spectrumID,attr"`
	SpectraDataRef string                       `xml:"spectraData_ref,attr"`
	Items          []spectrumIdentificationItem `xml:"SpectrumIdentificationItem"`
}

type spectrumIdentificationItem struct {
	ID                       string    `xml:"id,attr"`
	ChargeState              int       `xml:"chargeState,attr"`
	ExperimentalMassToCharge string    `xml:"experimentalMassToCharge,attr"`
	CalculatedMassToCharge   string    `xml:"calculatedMassToCharge,attr"`
	PeptideRef               string    `xml:"peptide_ref,attr"`
	Rank                     int       `xml:"rank,attr"`
	PassThreshold            bool      `xml:"passThreshold,attr"`
	PeptideEvidenceRefs      []struct {
		Ref string `xml:"peptideEvidence_ref,attr"`
	} `xml:"PeptideEvidenceRef"`
	CvPar   []cvParam   `xml:"cvParam"`
	UserPar []userParam `xml:"userParam"`
}

// crossLinkRole classifies a modification by its cross-link cvParams.
func crossLinkRole(params []cvParam) string {
	for _, cv := range params {
		name := strings.ToLower(cv.Name)
		switch {
		case cv.Accession == cvCrossLinkDonor || name == "cross-link donor":
			return "donor"
		case cv.Accession == cvCrossLinkAcceptor || name == "cross-link acceptor" || name == "cross-link receiver":
			return "acceptor"
		}
	}
	return ""
}

func attrFloat(v string, fallback float64) float64 {
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}
