package motion

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeAT2 writes a minimal PEER AT2 fixture with the given samples (in
// g) at the given dt, under dir/event/station+component.AT2.
func writeAT2(t *testing.T, dir, event, stationComponent string, dt float64, samples []float64) string {
	t.Helper()
	eventDir := filepath.Join(dir, event)
	if err := os.MkdirAll(eventDir, 0o755); err != nil {
		t.Fatal(err)
	}

	var body string
	body += "PEER STRONG MOTION DATABASE RECORD\n"
	body += "FIXTURE\n"
	body += "ACCELERATION\n"
	body += fmt.Sprintf("NPTS= %d, DT= %g SEC\n", len(samples), dt)
	for i, v := range samples {
		body += fmt.Sprintf("%g", v)
		if (i+1)%5 == 0 {
			body += "\n"
		} else {
			body += " "
		}
	}
	body += "\n"

	path := filepath.Join(eventDir, stationComponent+".AT2")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRecordParsesIdentityAndSamples(t *testing.T) {
	dir := t.TempDir()
	samples := make([]float64, 200)
	for i := range samples {
		samples[i] = 0.01 * math.Sin(0.5*float64(i))
	}
	path := writeAT2(t, dir, "EventA", "STA1090", 0.02, samples)

	cfg := SpectrumConfig{Period: []float64{0.1, 0.5, 1.0}, Damping: 0.05}
	r, err := LoadRecord(path, cfg)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}

	if r.Event() != "EventA" {
		t.Errorf("Event() = %q, want EventA", r.Event())
	}
	if r.Station() != "STA1" || r.Component() != "090" {
		t.Errorf("Station/Component = %q/%q, want STA1/090", r.Station(), r.Component())
	}
	if len(r.Acc()) != len(samples) {
		t.Errorf("len(Acc()) = %d, want %d", len(r.Acc()), len(samples))
	}
}

// TestSaMatchesExpLnSa exercises invariant 1 of §8: sa[j] = exp(ln_sa[j])
// to within 1e-12 relative.
func TestSaMatchesExpLnSa(t *testing.T) {
	r := recordWithSpectrum(t)
	for j, sa := range r.Sa() {
		want := math.Exp(r.LnSa()[j])
		if diff := math.Abs(sa-want) / want; diff > 1e-12 {
			t.Errorf("period %d: sa=%g exp(lnSa)=%g diff=%e", j, sa, want, diff)
		}
	}
}

// TestScaleByComposition exercises invariant 2 of §8: successive
// scale_by calls compose, scale_by(a); scale_by(b) leaves the same net
// effect as a single scale_by(b) from the original.
func TestScaleByComposition(t *testing.T) {
	a := recordWithSpectrum(t)
	b := recordWithSpectrum(t)

	a.ScaleBy(1.5)
	a.ScaleBy(2.0)

	b.ScaleBy(2.0)

	if diff := math.Abs(a.PGA() - b.PGA()); diff > 1e-9 {
		t.Errorf("composed scale PGA = %g, want %g", a.PGA(), b.PGA())
	}
	for j := range a.Sa() {
		if diff := math.Abs(a.Sa()[j] - b.Sa()[j]); diff > 1e-9 {
			t.Errorf("period %d: composed sa = %g, want %g", j, a.Sa()[j], b.Sa()[j])
		}
	}
}

// TestResponseSpectrumPeaksAtResonance exercises invariant 5 of §8: a
// single-frequency sinusoid's response spectrum at T=1/f0 peaks near
// 1/(2*zeta) times the input amplitude.
func TestResponseSpectrumPeaksAtResonance(t *testing.T) {
	dir := t.TempDir()
	dt := 0.01
	f0 := 2.0
	amp := 0.1
	n := 4096
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*f0*float64(i)*dt)
	}
	path := writeAT2(t, dir, "EventB", "STA2000", dt, samples)

	zeta := 0.05
	period := []float64{1 / f0}
	cfg := SpectrumConfig{Period: period, Damping: zeta}
	r, err := LoadRecord(path, cfg)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}

	want := amp / (2 * zeta)
	got := r.Sa()[0]
	if diff := math.Abs(got-want) / want; diff > 0.05 {
		t.Errorf("resonant Sa = %g, want ~%g (within 5%%)", got, want)
	}
}

func recordWithSpectrum(t *testing.T) *Record {
	t.Helper()
	dir := t.TempDir()
	samples := make([]float64, 400)
	for i := range samples {
		samples[i] = 0.02 * math.Sin(0.3*float64(i))
	}
	path := writeAT2(t, dir, "EventC", "STA3000", 0.01, samples)

	cfg := SpectrumConfig{Period: []float64{0.1, 0.2, 0.5, 1.0, 2.0}, Damping: 0.05}
	r, err := LoadRecord(path, cfg)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	return r
}
