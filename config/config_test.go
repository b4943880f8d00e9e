package config

import (
	"os"
	"path/filepath"
	"testing"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		for k, v := range env {
			if equalFold(k, name) {
				return v, true
			}
		}
		return "", false
	}
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func TestDefaultsApplied(t *testing.T) {
	cfg := Default()
	if cfg.Port != 8000 || cfg.MQTT.Site != "site1" {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
	if !cfg.TAK.FinalStaleOnElimination {
		t.Fatal("final-stale-on-elimination should default on")
	}
}

func TestEnvOverridesCaseInsensitive(t *testing.T) {
	cfg := Default()
	cfg.applyEnv(lookupFrom(map[string]string{
		"port":           "9001",
		"MQTT_broker_URL": "tcp://broker:1883",
		"map_center_lat": "40.7128",
		"simulation_enabled": "false",
	}))
	if cfg.Port != 9001 {
		t.Fatalf("port = %d, want env override 9001", cfg.Port)
	}
	if cfg.MQTT.BrokerURL != "tcp://broker:1883" {
		t.Fatalf("broker = %q", cfg.MQTT.BrokerURL)
	}
	if cfg.Map.CenterLat != 40.7128 {
		t.Fatalf("lat = %v", cfg.Map.CenterLat)
	}
	if cfg.Sim.Enabled {
		t.Fatal("simulation_enabled=false ignored")
	}
}

func TestUnparseableEnvValuesIgnored(t *testing.T) {
	cfg := Default()
	cfg.applyEnv(lookupFrom(map[string]string{
		"PORT":           "not-a-number",
		"MAP_CENTER_LAT": "forty",
	}))
	if cfg.Port != 8000 || cfg.Map.CenterLat != 37.7749 {
		t.Fatalf("bad env values clobbered defaults: %+v", cfg)
	}
}

func TestYamlOverlayEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tritium.yaml")
	yaml := "port: 7777\nmqtt:\n  site: yardsite\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "6666")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTT.Site != "yardsite" {
		t.Fatalf("yaml site not applied: %q", cfg.MQTT.Site)
	}
	if cfg.Port != 6666 {
		t.Fatalf("port = %d, want env (6666) to beat yaml (7777)", cfg.Port)
	}
}

func TestMissingYamlFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("absent overlay file errored: %v", err)
	}
}

func TestMalformedYamlErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [not a port"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}
