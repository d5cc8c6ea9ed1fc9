package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arkottke/sigmaspectra/motion"
	"github.com/arkottke/sigmaspectra/suite"
	"github.com/arkottke/sigmaspectra/target"
)

func writeFixtureAT2(t *testing.T, dir, name string, amp float64) string {
	t.Helper()
	n := 200
	var body strings.Builder
	body.WriteString("PEER STRONG MOTION DATABASE RECORD\n")
	body.WriteString("FIXTURE\n")
	body.WriteString("ACCELERATION\n")
	fmt.Fprintf(&body, "NPTS= %d, DT= 0.01 SEC\n", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&body, "%g ", amp*float64(i%10)/10)
	}
	body.WriteString("\n")

	path := filepath.Join(dir, name+".AT2")
	if err := os.WriteFile(path, []byte(body.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func buildTestSuite(t *testing.T) (*suite.Suite, *target.Spectrum) {
	t.Helper()
	dir := t.TempDir()
	period := []float64{0.1, 0.3, 1.0}
	cfg := motion.SpectrumConfig{Period: period, Damping: 0.05}

	r1, err := motion.LoadRecord(writeFixtureAT2(t, dir, "STA1090", 0.2), cfg)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	r2, err := motion.LoadRecord(writeFixtureAT2(t, dir, "STA2090", 0.3), cfg)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}

	s := suite.New()
	s.Append(r1)
	s.Append(r2)

	tgt, err := target.New(period, []float64{0.2, 0.25, 0.1}, []float64{0.3, 0.3, 0.3}, nil)
	if err != nil {
		t.Fatalf("target.New: %v", err)
	}
	if err := s.ComputeScalars(tgt); err != nil {
		t.Fatalf("ComputeScalars: %v", err)
	}
	return s, tgt
}

func TestWriteCSVHasHeaderAndSpectrumBlock(t *testing.T) {
	s, tgt := buildTestSuite(t)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, s, tgt); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Median RMSE") {
		t.Errorf("missing error-summary header: %q", out)
	}
	if !strings.Contains(out, "Period (s)") {
		t.Errorf("missing spectrum header: %q", out)
	}
}

func TestWriteSummaryOmitsSpectrumBlock(t *testing.T) {
	s, _ := buildTestSuite(t)
	var buf bytes.Buffer
	if err := WriteSummary(&buf, s); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if strings.Contains(buf.String(), "Period (s)") {
		t.Errorf("WriteSummary should not include the spectrum block")
	}
}

func TestWriteStrataOneLinePerComponent(t *testing.T) {
	s, _ := buildTestSuite(t)
	var buf bytes.Buffer
	if err := WriteStrata(&buf, s); err != nil {
		t.Fatalf("WriteStrata: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(s.Members()) {
		t.Errorf("got %d lines, want %d (one per member)", len(lines), len(s.Members()))
	}
}

func TestWriteJSONRoundTripsMemberCount(t *testing.T) {
	s, tgt := buildTestSuite(t)
	var buf bytes.Buffer
	if err := WriteJSON(&buf, s, tgt); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"median_rmse"`) {
		t.Errorf("missing median_rmse field: %q", buf.String())
	}

	var doc struct {
		Members []json.RawMessage `json:"members"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decoding WriteJSON output: %v", err)
	}
	if len(doc.Members) != len(s.Members()) {
		t.Errorf("got %d members in JSON, want %d", len(doc.Members), len(s.Members()))
	}
}

func TestWriteSHAKE2000PadsNameAndScale(t *testing.T) {
	s, _ := buildTestSuite(t)
	var buf bytes.Buffer
	if err := WriteSHAKE2000(&buf, s); err != nil {
		t.Fatalf("WriteSHAKE2000: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(s.Members())+1 {
		t.Fatalf("got %d lines, want %d (header + one per member)", len(lines), len(s.Members())+1)
	}
	for _, line := range lines[1:] {
		if len(line) < 86 {
			t.Errorf("line %q shorter than 80+6 padded width", line)
		}
	}
}
