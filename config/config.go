// Package config loads the process-wide configuration once at startup:
// environment variables first (case-insensitive, unknown variables
// ignored), with an optional tritium.yaml overlay for local development.
// Environment always wins over the file. The resulting Config is passed
// to constructors explicitly and never mutated afterward.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration tree.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	MQTT   MQTTConfig   `yaml:"mqtt"`
	TAK    TAKConfig    `yaml:"tak"`
	Mesh   MeshConfig   `yaml:"mesh"`
	Influx InfluxConfig `yaml:"influx"`
	LLM    LLMConfig    `yaml:"llm"`
	Map    MapConfig    `yaml:"map"`
	Sim    SimConfig    `yaml:"simulation"`
}

// MQTTConfig configures the robot telemetry/command bridge.
type MQTTConfig struct {
	BrokerURL string `yaml:"broker_url"`
	Site      string `yaml:"site"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// TAKConfig configures the CoT-over-TCP bridge.
type TAKConfig struct {
	CotURL          string  `yaml:"cot_url"`
	Callsign        string  `yaml:"callsign"`
	PublishInterval float64 `yaml:"publish_interval"` // seconds between SA pushes per target
	StaleSeconds    float64 `yaml:"stale_seconds"`
	// FinalStaleOnElimination sends one last SA event with stale=now when
	// a target is eliminated, then stops publishing it.
	FinalStaleOnElimination bool `yaml:"final_stale_on_elimination"`
}

// MeshConfig configures the Meshtastic text bridge.
type MeshConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DevicePath  string `yaml:"device_path"`
	MaxTextSize int    `yaml:"max_text_size"`
}

// InfluxConfig points telemetry metric queries at an InfluxDB host.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// LLMConfig configures the NPC thinking hook.
type LLMConfig struct {
	Host           string  `yaml:"host"`
	Model          string  `yaml:"model"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
}

// MapConfig fixes the geo-reference center of the local meter frame.
type MapConfig struct {
	CenterLat float64 `yaml:"center_lat"`
	CenterLng float64 `yaml:"center_lng"`
	CenterAlt float64 `yaml:"center_alt"`
}

// SimConfig holds engine toggles.
type SimConfig struct {
	Enabled             bool    `yaml:"enabled"`
	FakeRobots          int     `yaml:"fake_robots"`
	DetectionConfidence float64 `yaml:"detection_confidence"`
	ScenarioDir         string  `yaml:"scenario_dir"`
}

// Default returns the configuration used when no environment or file
// overrides anything.
func Default() Config {
	return Config{
		Host: "0.0.0.0",
		Port: 8000,
		MQTT: MQTTConfig{
			BrokerURL: "tcp://localhost:1883",
			Site:      "site1",
			ClientID:  "tritium-engine",
		},
		TAK: TAKConfig{
			Callsign:                "TRITIUM",
			PublishInterval:         2.0,
			StaleSeconds:            60,
			FinalStaleOnElimination: true,
		},
		Mesh: MeshConfig{MaxTextSize: 200},
		LLM: LLMConfig{
			Host:           "http://localhost:11434",
			Model:          "llama3.2",
			TimeoutSeconds: 300,
			RatePerSecond:  1,
			Burst:          3,
		},
		Map: MapConfig{CenterLat: 37.7749, CenterLng: -122.4194},
		Sim: SimConfig{
			Enabled:             true,
			DetectionConfidence: 0.5,
			ScenarioDir:         "scenarios/battle",
		},
	}
}

// Load builds the configuration: defaults, then the yaml file at path
// (skipped when path is empty or the file is absent), then environment
// variables on top.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}
	cfg.applyEnv(envLookup)
	return cfg, nil
}

// envLookup finds an environment variable case-insensitively.
func envLookup(name string) (string, bool) {
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	for _, kv := range os.Environ() {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		if strings.EqualFold(kv[:eq], name) {
			return kv[eq+1:], true
		}
	}
	return "", false
}

// applyEnv overlays recognized environment variables onto cfg. Unknown
// variables are ignored by construction: only the names below are read.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	setString(lookup, "HOST", &c.Host)
	setInt(lookup, "PORT", &c.Port)

	setString(lookup, "MQTT_BROKER_URL", &c.MQTT.BrokerURL)
	setString(lookup, "MQTT_SITE", &c.MQTT.Site)
	setString(lookup, "MQTT_CLIENT_ID", &c.MQTT.ClientID)
	setString(lookup, "MQTT_USERNAME", &c.MQTT.Username)
	setString(lookup, "MQTT_PASSWORD", &c.MQTT.Password)

	setString(lookup, "TAK_COT_URL", &c.TAK.CotURL)
	setString(lookup, "TAK_CALLSIGN", &c.TAK.Callsign)
	setFloat(lookup, "TAK_PUBLISH_INTERVAL", &c.TAK.PublishInterval)
	setFloat(lookup, "TAK_STALE_SECONDS", &c.TAK.StaleSeconds)
	setBool(lookup, "TAK_FINAL_STALE_ON_ELIMINATION", &c.TAK.FinalStaleOnElimination)

	setBool(lookup, "MESH_ENABLED", &c.Mesh.Enabled)
	setString(lookup, "MESH_DEVICE_PATH", &c.Mesh.DevicePath)
	setInt(lookup, "MESHTASTIC_MAX_TEXT", &c.Mesh.MaxTextSize)

	setString(lookup, "INFLUX_URL", &c.Influx.URL)
	setString(lookup, "INFLUX_TOKEN", &c.Influx.Token)
	setString(lookup, "INFLUX_ORG", &c.Influx.Org)
	setString(lookup, "INFLUX_BUCKET", &c.Influx.Bucket)

	setString(lookup, "AMY_OLLAMA_HOST", &c.LLM.Host)
	setString(lookup, "AMY_MODEL", &c.LLM.Model)
	setFloat(lookup, "AMY_LLM_TIMEOUT", &c.LLM.TimeoutSeconds)
	setFloat(lookup, "AMY_THINK_RATE", &c.LLM.RatePerSecond)
	setInt(lookup, "AMY_THINK_BURST", &c.LLM.Burst)

	setFloat(lookup, "MAP_CENTER_LAT", &c.Map.CenterLat)
	setFloat(lookup, "MAP_CENTER_LNG", &c.Map.CenterLng)
	setFloat(lookup, "MAP_CENTER_ALT", &c.Map.CenterAlt)

	setBool(lookup, "SIMULATION_ENABLED", &c.Sim.Enabled)
	setInt(lookup, "SIMULATION_FAKE_ROBOTS", &c.Sim.FakeRobots)
	setFloat(lookup, "DETECTION_CONFIDENCE", &c.Sim.DetectionConfidence)
	setString(lookup, "SCENARIO_DIR", &c.Sim.ScenarioDir)
}

func setString(lookup func(string) (string, bool), name string, dst *string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func setInt(lookup func(string) (string, bool), name string, dst *int) {
	if v, ok := lookup(name); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setFloat(lookup func(string) (string, bool), name string, dst *float64) {
	if v, ok := lookup(name); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

func setBool(lookup func(string) (string, bool), name string, dst *bool) {
	if v, ok := lookup(name); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}
