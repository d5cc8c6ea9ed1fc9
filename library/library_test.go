package library

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/arkottke/sigmaspectra/motion"
)

func writeAT2(t *testing.T, dir, event, stationComponent string) string {
	t.Helper()
	eventDir := filepath.Join(dir, event)
	if err := os.MkdirAll(eventDir, 0o755); err != nil {
		t.Fatal(err)
	}

	n := 50
	var body string
	body += "PEER STRONG MOTION DATABASE RECORD\n"
	body += "FIXTURE\n"
	body += "ACCELERATION\n"
	body += fmt.Sprintf("NPTS= %d, DT= 0.02 SEC\n", n)
	for i := 0; i < n; i++ {
		body += fmt.Sprintf("%g ", 0.001*float64(i%7))
	}
	body += "\n"

	path := filepath.Join(eventDir, stationComponent+".AT2")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPairsComponentsGreedily(t *testing.T) {
	dir := t.TempDir()
	writeAT2(t, dir, "EventA", "STA1090")
	writeAT2(t, dir, "EventA", "STA1000")
	writeAT2(t, dir, "EventA", "STA2090")

	lib, err := Load(dir, Options{
		Paired: true,
		Config: motion.SpectrumConfig{Period: []float64{0.1, 0.5}, Damping: 0.05},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	motions := lib.Motions()
	if len(motions) != 1 {
		t.Fatalf("len(Motions()) = %d, want 1 (one pair, one unmatched record dropped)", len(motions))
	}
	if motions[0].ComponentCount() != 2 {
		t.Errorf("ComponentCount() = %d, want 2", motions[0].ComponentCount())
	}
}

func TestLoadUnpairedReturnsAllRecords(t *testing.T) {
	dir := t.TempDir()
	writeAT2(t, dir, "EventA", "STA1090")
	writeAT2(t, dir, "EventA", "STA2000")

	lib, err := Load(dir, Options{
		Paired: false,
		Config: motion.SpectrumConfig{Period: []float64{0.1, 0.5}, Damping: 0.05},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(lib.Motions()) != 2 {
		t.Fatalf("len(Motions()) = %d, want 2", len(lib.Motions()))
	}
}

func TestSetFlagByName(t *testing.T) {
	dir := t.TempDir()
	writeAT2(t, dir, "EventA", "STA1090")

	lib, err := Load(dir, Options{Config: motion.SpectrumConfig{Period: []float64{0.1}, Damping: 0.05}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	name := lib.Motions()[0].Name()
	if !lib.SetFlag(name, motion.Required) {
		t.Fatalf("SetFlag(%q) returned false", name)
	}
	if lib.Motions()[0].Flag() != motion.Required {
		t.Errorf("Flag() = %v, want Required", lib.Motions()[0].Flag())
	}
}
