package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 0\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.DB.Driver)
	}
	if cfg.Session.TTLMinutes != 30 {
		t.Errorf("TTLMinutes = %d, want 30", cfg.Session.TTLMinutes)
	}
	if cfg.Session.MarkerTTLMinutes != 5 {
		t.Errorf("MarkerTTLMinutes = %d, want 5", cfg.Session.MarkerTTLMinutes)
	}
	if cfg.Poll.BudgetSeconds != 10 {
		t.Errorf("BudgetSeconds = %d, want 10", cfg.Poll.BudgetSeconds)
	}
	if cfg.Push.Provider != "none" {
		t.Errorf("Provider = %q, want none", cfg.Push.Provider)
	}
	if cfg.Finalize.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Finalize.Workers)
	}
}

func TestParse_BadDriver(t *testing.T) {
	_, err := Parse([]byte("db:\n  driver: postgres\n"))
	if err == nil {
		t.Fatal("expected error for bad driver")
	}
	if !strings.Contains(err.Error(), "db.driver must be sqlite or mysql") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestParse_MySQLRequiresDatabase(t *testing.T) {
	_, err := Parse([]byte("db:\n  driver: mysql\n"))
	if err == nil {
		t.Fatal("expected error for missing database")
	}
	if !strings.Contains(err.Error(), "db.database is required") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestParse_BadPushProvider(t *testing.T) {
	_, err := Parse([]byte("push:\n  provider: teams\n"))
	if err == nil {
		t.Fatal("expected error for bad provider")
	}
}

func TestParse_PollIntervalExceedsBudget(t *testing.T) {
	_, err := Parse([]byte("poll:\n  interval_ms: 20000\n  budget_seconds: 10\n"))
	if err == nil {
		t.Fatal("expected error for interval >= budget")
	}
	if !strings.Contains(err.Error(), "poll.interval_ms") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestDurations(t *testing.T) {
	cfg, err := Parse([]byte("poll:\n  interval_ms: 250\n  budget_seconds: 5\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", got)
	}
	if got := cfg.PollBudget(); got != 5*time.Second {
		t.Errorf("PollBudget = %v", got)
	}
	if got := cfg.SessionTTL(); got != 30*time.Minute {
		t.Errorf("SessionTTL = %v", got)
	}
	if got := cfg.MarkerTTL(); got != 5*time.Minute {
		t.Errorf("MarkerTTL = %v", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("\tnot yaml"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}
