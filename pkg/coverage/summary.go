package coverage

import (
	"encoding/xml"
	"fmt"
	"os"
)

// Summary holds the headline numbers of a Cobertura report.
type Summary struct {
	LineRate        float64 `xml:"line-rate,attr" json:"line_rate"`
	BranchRate      float64 `xml:"branch-rate,attr" json:"branch_rate"`
	LinesCovered    int     `xml:"lines-covered,attr" json:"lines_covered"`
	LinesValid      int     `xml:"lines-valid,attr" json:"lines_valid"`
	BranchesCovered int     `xml:"branches-covered,attr" json:"branches_covered"`
	BranchesValid   int     `xml:"branches-valid,attr" json:"branches_valid"`
	Version         string  `xml:"version,attr" json:"version,omitempty"`
}

// LinePercent returns the line rate as a percentage.
func (s *Summary) LinePercent() float64 { return s.LineRate * 100 }

// BranchPercent returns the branch rate as a percentage.
func (s *Summary) BranchPercent() float64 { return s.BranchRate * 100 }

type coberturaRoot struct {
	XMLName xml.Name `xml:"coverage"`
	Summary
}

// ParseSummary reads the root <coverage> attributes of a Cobertura report.
func ParseSummary(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var root coberturaRoot
	if err := xml.NewDecoder(f).Decode(&root); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &root.Summary, nil
}
