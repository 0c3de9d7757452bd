package traits

import "testing"

func TestSenseBitmask(t *testing.T) {
	s := Chemoreception
	s = s.Add(Photoreception).Add(Thermoreception)

	if !s.Has(Photoreception) {
		t.Error("expected photoreception")
	}
	if s.Has(Electroreception) {
		t.Error("unexpected electroreception")
	}
	if got := s.Count(); got != 3 {
		t.Errorf("Count mismatch: got %d, want 3", got)
	}

	s = s.Remove(Photoreception)
	if s.Has(Photoreception) {
		t.Error("photoreception should be removed")
	}
}

func TestAxisRoundTrip(t *testing.T) {
	src := Genome{
		Substrate:   SulfurIron,
		Structure:   Bilateral,
		SizeLog:     -1.5,
		Energy:      Heterotrophy,
		Senses:      Chemoreception | Mechanoreception,
		Cognition:   0.7,
		Collective:  0.3,
		Propagation: Sexual,
		Motility:    Walking,
		Interface:   Endoskeleton,
	}

	var dst Genome
	for _, a := range Axes() {
		dst.SetAxis(a, src)
	}
	if dst != src {
		t.Errorf("SetAxis copy mismatch: got %+v, want %+v", dst, src)
	}
	if diff := dst.Diff(src); len(diff) != 0 {
		t.Errorf("Diff of equal genomes = %v, want none", diff)
	}

	dst.Motility = Flight
	diff := dst.Diff(src)
	if len(diff) != 1 || diff[0] != AxisMotility {
		t.Errorf("Diff mismatch: got %v, want [motility]", diff)
	}
}

func TestDescribe(t *testing.T) {
	g := Genome{
		Substrate:  CarbonWater,
		Structure:  Bilateral,
		SizeLog:    -1,
		Energy:     Heterotrophy,
		Cognition:  0.3,
		Collective: 0.5,
		Motility:   Walking,
	}
	want := "meso carbon-water bilateral learning (herd, heterotroph, walking)"
	if got := g.Describe(); got != want {
		t.Errorf("Describe mismatch: got %q, want %q", got, want)
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		g    Genome
		want string
	}{
		{"simple", Genome{Substrate: Silicon, Cognition: 0.1}, "Si-SIMPLE"},
		{"complex", Genome{Substrate: CarbonAmmonia, Cognition: 0.5}, "C-NH3-COMPLEX"},
		{"sapient", Genome{Substrate: CarbonWater, Cognition: 0.9}, "C-H2O-SAPIENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.Short(); got != tt.want {
				t.Errorf("Short mismatch: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAxisOrder(t *testing.T) {
	if AxisSubstrate != 0 || AxisInterface != NumAxes-1 {
		t.Errorf("axis range mismatch: substrate=%d interface=%d", AxisSubstrate, AxisInterface)
	}
	if got := AxisCognition.String(); got != "cognition" {
		t.Errorf("Axis name mismatch: got %q, want cognition", got)
	}
}
