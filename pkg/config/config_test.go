package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Engine.UseOverridesInDuration || c.Engine.HonorOverridesInBaseline {
		t.Error("override flags must default to false")
	}
	if c.Engine.ArtifactURI != "" {
		t.Errorf("ArtifactURI = %q, want empty", c.Engine.ArtifactURI)
	}
	if c.Confidence.UnknownPenalty != 0.15 || c.Confidence.Baseline != 0.98 {
		t.Errorf("Confidence = %+v", c.Confidence)
	}
	if c.Addr() != "localhost:8080" {
		t.Errorf("Addr = %q", c.Addr())
	}
}

func TestLoadFiles_Layering(t *testing.T) {
	dir := t.TempDir()
	system := writeFile(t, dir, "system.yaml", `
engine:
  artifact_uri: s3://models/o2c.json
  batch_concurrency: 4
server:
  port: 9000
store:
  s3:
    region: eu-west-1
    timeout: 10s
`)
	project := writeFile(t, dir, "project.yaml", `
engine:
  use_overrides_in_duration: true
server:
  port: 9100
confidence:
  variant_bonus: 0.1
`)

	m := NewManager()
	m.lookup = func(string) string { return "" }
	if err := m.LoadFiles(system, filepath.Join(dir, "missing.yaml"), project); err != nil {
		t.Fatalf("LoadFiles failed: %v", err)
	}

	c := m.Get()
	if c.Engine.ArtifactURI != "s3://models/o2c.json" || c.Engine.BatchConcurrency != 4 {
		t.Errorf("engine = %+v", c.Engine)
	}
	if !c.Engine.UseOverridesInDuration {
		t.Error("project file should enable UseOverridesInDuration")
	}
	if c.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", c.Server.Port)
	}
	if c.Store.S3.Region != "eu-west-1" || c.Store.S3.Timeout != 10*time.Second {
		t.Errorf("s3 = %+v", c.Store.S3)
	}
	if c.Confidence.VariantBonus != 0.1 || c.Confidence.UnknownPenalty != 0.15 {
		t.Errorf("confidence = %+v", c.Confidence)
	}
	if got := m.GetPaths(); len(got) != 2 {
		t.Errorf("loaded paths = %v, want 2", got)
	}
}

func TestLoadEnv(t *testing.T) {
	env := map[string]string{
		"O2CSIM_ARTIFACT_URI":                "redis://cache:6379/o2c",
		"O2CSIM_HONOR_OVERRIDES_IN_BASELINE": "true",
		"O2CSIM_PORT":                        "7070",
		"O2CSIM_CORS_ORIGINS":                "https://a.example,https://b.example",
	}
	m := NewManager()
	m.lookup = func(k string) string { return env[k] }
	if err := m.LoadFiles(); err != nil {
		t.Fatalf("LoadFiles failed: %v", err)
	}

	c := m.Get()
	if c.Engine.ArtifactURI != "redis://cache:6379/o2c" || !c.Engine.HonorOverridesInBaseline {
		t.Errorf("engine = %+v", c.Engine)
	}
	if c.Server.Port != 7070 || len(c.Server.CORSOrigins) != 2 {
		t.Errorf("server = %+v", c.Server)
	}

	env["O2CSIM_PORT"] = "seventy"
	if err := m.LoadFiles(); err == nil {
		t.Error("Expected error for malformed port")
	}
}

func TestLoadFiles_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "engine: [")
	m := NewManager()
	if err := m.LoadFiles(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	m := NewManager()
	c := m.Get()
	c.Server.Port = 1
	c.Server.CORSOrigins[0] = "mutated"
	if m.Get().Server.Port != 8080 || m.Get().Server.CORSOrigins[0] != "*" {
		t.Error("Get must return an independent copy")
	}
}
