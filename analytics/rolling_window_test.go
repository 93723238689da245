package analytics

import "testing"

func TestRollingWindowKeepsNewest(t *testing.T) {
	rw := NewRollingWindow(3)
	if got := rw.Samples(); len(got) != 0 {
		t.Fatalf("expected empty window, got %d samples", len(got))
	}

	for i := 0; i < 5; i++ {
		rw.Add(sample(i, float64(i), 1, 1))
	}
	if rw.Len() != 3 {
		t.Fatalf("expected 3 samples, got %d", rw.Len())
	}
	got := rw.Samples()
	for i, want := range []float64{2, 3, 4} {
		if got[i].EnergyUsageKWh != want {
			t.Fatalf("position %d: want energy %f, got %f", i, want, got[i].EnergyUsageKWh)
		}
	}
}

func TestRollingWindowPartial(t *testing.T) {
	rw := NewRollingWindow(4)
	rw.Add(sample(0, 1, 1, 1))
	rw.Add(sample(1, 2, 1, 1))
	got := rw.Samples()
	if len(got) != 2 || got[0].EnergyUsageKWh != 1 || got[1].EnergyUsageKWh != 2 {
		t.Fatalf("unexpected partial window %+v", got)
	}
}
