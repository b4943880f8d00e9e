package sim

import (
	"math"
	"testing"
)

func perfectWave() WaveStats {
	return WaveStats{
		Eliminations:      5,
		HostilesSpawned:   5,
		WaveTime:          15,
		FriendlyMaxHealth: 400,
		Escapes:           0,
	}
}

func TestThreePerfectWavesReachOnePointThree(t *testing.T) {
	d := NewDifficultyScaler()
	for i := 0; i < 3; i++ {
		d.RecordWave(perfectWave())
	}
	if got := d.Multiplier(); math.Abs(got-1.3) > 0.01 {
		t.Fatalf("multiplier after 3 perfect waves = %v, want 1.3", got)
	}
	adj := d.WaveAdjustmentsFor(5)
	if adj.HostileCount != 7 {
		t.Fatalf("hostile count for base 5 at m=1.3 = %d, want round(6.5)=7", adj.HostileCount)
	}
}

func TestMultiplierStaysBounded(t *testing.T) {
	d := NewDifficultyScaler()
	for i := 0; i < 50; i++ {
		d.RecordWave(perfectWave())
		if m := d.Multiplier(); m < 0.5 || m > 2.0 {
			t.Fatalf("multiplier %v escaped [0.5, 2.0] after %d waves", m, i+1)
		}
	}
	if got := d.Multiplier(); got != 2.0 {
		t.Fatalf("multiplier after 50 perfect waves = %v, want capped 2.0", got)
	}

	disaster := WaveStats{
		Eliminations:        0,
		HostilesSpawned:     5,
		WaveTime:            90,
		FriendlyDamageTaken: 500,
		FriendlyMaxHealth:   400,
		Escapes:             5,
	}
	for i := 0; i < 50; i++ {
		d.RecordWave(disaster)
		if m := d.Multiplier(); m < 0.5 || m > 2.0 {
			t.Fatalf("multiplier %v escaped bounds on disaster wave %d", m, i+1)
		}
	}
	if got := d.Multiplier(); got != 0.5 {
		t.Fatalf("multiplier after 50 disaster waves = %v, want floored 0.5", got)
	}
}

func TestStepBoundedPerWave(t *testing.T) {
	d := NewDifficultyScaler()
	before := d.Multiplier()
	d.RecordWave(perfectWave())
	if delta := d.Multiplier() - before; delta > adjustmentStep+1e-9 {
		t.Fatalf("single-wave step %v exceeds %v", delta, adjustmentStep)
	}
}

func TestWaveAdjustments(t *testing.T) {
	tests := []struct {
		name         string
		multiplier   float64
		wantHardened bool
		wantEasy     bool
	}{
		{"neutral", 1.0, false, false},
		{"hardened", 1.6, true, false},
		{"easy", 0.6, false, true},
	}
	for _, tc := range tests {
		d := &DifficultyScaler{multiplier: tc.multiplier}
		adj := d.WaveAdjustmentsFor(4)
		if adj.Hardened != tc.wantHardened {
			t.Errorf("%s: Hardened = %v, want %v", tc.name, adj.Hardened, tc.wantHardened)
		}
		if adj.Easy != tc.wantEasy {
			t.Errorf("%s: Easy = %v, want %v", tc.name, adj.Easy, tc.wantEasy)
		}
		if tc.wantHardened {
			if adj.EliteCount != 1 || !adj.UseCoverSeeking || adj.FlankChanceBoost <= 0 {
				t.Errorf("%s: hardened side effects missing: %+v", tc.name, adj)
			}
		}
		if tc.wantEasy {
			if !adj.DisableFlanking || adj.SpeedReduction <= 0 {
				t.Errorf("%s: easy side effects missing: %+v", tc.name, adj)
			}
		}
		if adj.HostileCount < 1 {
			t.Errorf("%s: hostile count %d < 1", tc.name, adj.HostileCount)
		}
	}
}

func TestHealthSpeedBonusesTrackMultiplier(t *testing.T) {
	d := &DifficultyScaler{multiplier: 1.4}
	adj := d.WaveAdjustmentsFor(1)
	if math.Abs(adj.HostileHealthBonus-0.12) > 1e-9 {
		t.Fatalf("health bonus = %v, want (1.4-1)*0.3 = 0.12", adj.HostileHealthBonus)
	}
	if math.Abs(adj.HostileSpeedBonus-0.06) > 1e-9 {
		t.Fatalf("speed bonus = %v, want (1.4-1)*0.15 = 0.06", adj.HostileSpeedBonus)
	}

	low := &DifficultyScaler{multiplier: 0.8}
	if adj := low.WaveAdjustmentsFor(1); adj.HostileHealthBonus != 0 || adj.HostileSpeedBonus != 0 {
		t.Fatalf("bonuses below m=1 should be zero, got %+v", adj)
	}
}

func TestResetRestoresNeutral(t *testing.T) {
	d := NewDifficultyScaler()
	d.RecordWave(perfectWave())
	d.Reset()
	if d.Multiplier() != 1.0 {
		t.Fatalf("multiplier after reset = %v, want 1.0", d.Multiplier())
	}
}
