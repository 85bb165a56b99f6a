package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decker.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}
	if cfg.DBPath != "decker.db" || cfg.ReposDir != "repos" || cfg.UserID != "local" {
		t.Errorf("Expected built-in defaults, got %+v", cfg)
	}
	if len(cfg.Scheduler.LearningSteps) != 2 || cfg.Scheduler.GraduatingInterval != 7.5 {
		t.Errorf("Expected default scheduler tunables, got %+v", cfg.Scheduler)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
db_path: /data/decker.db
scheduler:
  learning_steps: [0.25, 1, 4]
  graduating_interval: 10
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}
	if cfg.DBPath != "/data/decker.db" {
		t.Errorf("Expected the file's db path, got %q", cfg.DBPath)
	}
	if cfg.UserID != "local" {
		t.Errorf("Expected the default user id to survive a partial file, got %q", cfg.UserID)
	}
	if len(cfg.Scheduler.LearningSteps) != 3 || cfg.Scheduler.GraduatingInterval != 10 {
		t.Errorf("Expected the file's scheduler tunables, got %+v", cfg.Scheduler)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Fatal("Expected an error for a missing config file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "db_path: /from/file.db\n")
	t.Setenv("DECKER_DB_PATH", "/from/env.db")
	t.Setenv("DECKER_SCHEDULER__GRADUATING_INTERVAL", "14")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}
	if cfg.DBPath != "/from/env.db" {
		t.Errorf("Expected the environment to win over the file, got %q", cfg.DBPath)
	}
	if cfg.Scheduler.GraduatingInterval != 14 {
		t.Errorf("Expected the nested env override, got %v", cfg.Scheduler.GraduatingInterval)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("DECKER_DB_PATH", "/from/env.db")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("user", "", "")
	flags.Bool("sync", false, "") // action flag, never reaches the config
	if err := flags.Parse([]string{"--db", "/from/flag.db", "--user", "anna", "--sync"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}
	if cfg.DBPath != "/from/flag.db" {
		t.Errorf("Expected the flag to win over the environment, got %q", cfg.DBPath)
	}
	if cfg.UserID != "anna" {
		t.Errorf("Expected the user flag to apply, got %q", cfg.UserID)
	}
}

func TestLoadRejectsInvalidTunables(t *testing.T) {
	t.Run("empty learning steps", func(t *testing.T) {
		path := writeConfigFile(t, "scheduler:\n  learning_steps: []\n")
		if _, err := Load(path, nil); err == nil {
			t.Fatal("Expected a validation error for empty learning steps")
		}
	})

	t.Run("non-positive graduating interval", func(t *testing.T) {
		path := writeConfigFile(t, "scheduler:\n  graduating_interval: 0\n")
		if _, err := Load(path, nil); err == nil {
			t.Fatal("Expected a validation error for a zero graduating interval")
		}
	})
}

func TestParams(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.LearningSteps = []float64{1, 2}
	cfg.Scheduler.GraduatingInterval = 9

	p := cfg.Params()
	if len(p.LearningSteps) != 2 || p.LearningSteps[0] != 1 || p.GraduatingInterval != 9 {
		t.Errorf("Expected the tunables to carry into the engine params, got %+v", p)
	}
	if p.StartingEase != 2.5 || p.MinEase != 1.3 || p.MaxEase != 3.0 {
		t.Errorf("Expected the fixed ease bounds to stay stock, got %+v", p)
	}
}
