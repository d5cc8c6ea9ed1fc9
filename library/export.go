package library

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/arkottke/sigmaspectra/motion"
	"github.com/arkottke/sigmaspectra/suite"
	"github.com/arkottke/sigmaspectra/target"
)

// WriteCSV emits the per-suite CSV of §6: error-summary header rows, a
// per-component scale/detail table, a blank line, then the response-
// spectrum block.
func WriteCSV(w io.Writer, s *suite.Suite, tgt *target.Spectrum) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	rows := [][]string{
		{"Median RMSE", format(s.MedianRMSE())},
		{"Median Max Error (%)", format(s.MedianMaxPct())},
		{"Std RMSE", format(s.StdevRMSE())},
		{"Sigma Inf", format(s.SigmaInf())},
		{"Name", "Scale", "PGA (g)", "PGV (cm/s)", "PGD (cm)", "Dur. 5-75 (s)", "Dur. 5-95 (s)", "Details"},
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}

	for _, row := range componentRows(s) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()

	if _, err := w.Write([]byte("\n")); err != nil {
		return err
	}

	header := append([]string{"Period (s)", "Median Sa (g)", "Sigma_ln"}, memberNames(s)...)
	if err := cw.Write(header); err != nil {
		return err
	}

	lnAvg := s.LnAvg()
	lnStd := s.LnStd()
	members := s.Members()
	for j, period := range tgt.Period() {
		row := []string{format(period), format(math.Exp(lnAvg[j])), format(lnStd[j])}
		for _, m := range members {
			row = append(row, format(m.Sa()[j]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// componentRows expands a suite's members (Records or Pairs) into one row
// per scaled component, matching the "Details" column to a paired
// motion's sibling component when present.
func componentRows(s *suite.Suite) [][]string {
	var rows [][]string
	scalars := s.Scalars()

	for i, m := range s.Members() {
		scale := format(scalars[i])
		switch v := m.(type) {
		case *motion.Pair:
			rows = append(rows,
				[]string{v.A().Name(), scale, format(v.A().PGA()), format(v.A().PGV()), format(v.A().PGD()), format(v.A().Dur575()), format(v.A().Dur595()), v.B().Name()},
				[]string{v.B().Name(), scale, format(v.B().PGA()), format(v.B().PGV()), format(v.B().PGD()), format(v.B().Dur575()), format(v.B().Dur595()), v.A().Name()},
			)
		case *motion.Record:
			rows = append(rows, []string{v.Name(), scale, format(v.PGA()), format(v.PGV()), format(v.PGD()), format(v.Dur575()), format(v.Dur595()), ""})
		}
	}
	return rows
}

func memberNames(s *suite.Suite) []string {
	names := make([]string, len(s.Members()))
	for i, m := range s.Members() {
		names[i] = m.Name()
	}
	return names
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteStrata emits one "<file_name>,<scale>" line per scaled component
// (§6).
func WriteStrata(w io.Writer, s *suite.Suite) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	scalars := s.Scalars()
	for i, m := range s.Members() {
		scale := format(scalars[i])
		switch v := m.(type) {
		case *motion.Pair:
			if err := cw.Write([]string{v.A().File(), scale}); err != nil {
				return err
			}
			if err := cw.Write([]string{v.B().File(), scale}); err != nil {
				return err
			}
		case *motion.Record:
			if err := cw.Write([]string{v.File(), scale}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSHAKE2000 emits the error-summary header line followed by one
// 80-char left-padded motion name and 6-char left-padded (3 decimal)
// scale per scaled component (§6). Always respects w as given: see
// resolved Open Question in the design notes regarding the source's
// current-working-directory bug.
func WriteSHAKE2000(w io.Writer, s *suite.Suite) error {
	if _, err := fmt.Fprintf(w, "Median RMSE %s  Std RMSE %s  Sigma Inf %s\n",
		format(s.MedianRMSE()), format(s.StdevRMSE()), format(s.SigmaInf())); err != nil {
		return err
	}

	scalars := s.Scalars()
	for i, m := range s.Members() {
		scale := scalars[i]
		switch v := m.(type) {
		case *motion.Pair:
			if err := writeShakeLine(w, v.A().Name(), scale); err != nil {
				return err
			}
			if err := writeShakeLine(w, v.B().Name(), scale); err != nil {
				return err
			}
		case *motion.Record:
			if err := writeShakeLine(w, v.Name(), scale); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeShakeLine(w io.Writer, name string, scale float64) error {
	_, err := fmt.Fprintf(w, "%80s%6.3f\n", name, scale)
	return err
}

// WriteSummary emits only the error header and scaled-component table,
// omitting the spectrum block (§6).
func WriteSummary(w io.Writer, s *suite.Suite) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	rows := [][]string{
		{"Median RMSE", format(s.MedianRMSE())},
		{"Median Max Error (%)", format(s.MedianMaxPct())},
		{"Std RMSE", format(s.StdevRMSE())},
		{"Sigma Inf", format(s.SigmaInf())},
		{"Name", "Scale", "PGA (g)", "PGV (cm/s)", "PGD (cm)", "Dur. 5-75 (s)", "Dur. 5-95 (s)", "Details"},
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}

	for _, row := range componentRows(s) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// suiteJSON is the wire shape for WriteJSON, grounded in the teacher's
// json.go MarshalIndent-with-four-spaces convention.
type suiteJSON struct {
	MedianRMSE   float64       `json:"median_rmse"`
	MedianMaxPct float64       `json:"median_max_pct"`
	StdevRMSE    float64       `json:"stdev_rmse"`
	SigmaInf     float64       `json:"sigma_inf"`
	Members      []memberJSON  `json:"members"`
	Period       []float64     `json:"period"`
	MedianSa     []float64     `json:"median_sa"`
	SigmaLn      []float64     `json:"sigma_ln"`
}

type memberJSON struct {
	Name   string  `json:"name"`
	Scale  float64 `json:"scale"`
	PGA    float64 `json:"pga"`
	PGV    float64 `json:"pgv"`
	PGD    float64 `json:"pgd"`
	Dur575 float64 `json:"dur_5_75"`
	Dur595 float64 `json:"dur_5_95"`
}

// WriteJSON serializes a suite and its response spectrum as indented
// JSON, mirroring the teacher's WriteJson/JsonIndentDumps four-space
// convention.
func WriteJSON(w io.Writer, s *suite.Suite, tgt *target.Spectrum) error {
	lnAvg := s.LnAvg()
	medianSa := make([]float64, len(lnAvg))
	for j, v := range lnAvg {
		medianSa[j] = math.Exp(v)
	}

	scalars := s.Scalars()
	members := make([]memberJSON, 0, len(s.Members()))
	for i, m := range s.Members() {
		switch v := m.(type) {
		case *motion.Pair:
			members = append(members,
				memberJSON{v.A().Name(), scalars[i], v.A().PGA(), v.A().PGV(), v.A().PGD(), v.A().Dur575(), v.A().Dur595()},
				memberJSON{v.B().Name(), scalars[i], v.B().PGA(), v.B().PGV(), v.B().PGD(), v.B().Dur575(), v.B().Dur595()},
			)
		case *motion.Record:
			members = append(members, memberJSON{v.Name(), scalars[i], v.PGA(), v.PGV(), v.PGD(), v.Dur575(), v.Dur595()})
		}
	}

	doc := suiteJSON{
		MedianRMSE:   s.MedianRMSE(),
		MedianMaxPct: s.MedianMaxPct(),
		StdevRMSE:    s.StdevRMSE(),
		SigmaInf:     s.SigmaInf(),
		Members:      members,
		Period:       tgt.Period(),
		MedianSa:     medianSa,
		SigmaLn:      s.LnStd(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(doc)
}
