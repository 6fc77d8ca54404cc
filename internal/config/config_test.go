package config

import (
	"testing"
	"time"

	"github.com/hrishabh6/algocrack/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Worker.LockTTL != 30*time.Second {
		t.Errorf("lock ttl = %v", cfg.Worker.LockTTL)
	}
	if cfg.Worker.ID == "" {
		t.Error("worker id must default to the hostname")
	}
	if cfg.Judge.MaxInfraRetries != 2 || cfg.Judge.RetryBaseDelay != 200*time.Millisecond {
		t.Errorf("judge = %+v", cfg.Judge)
	}
	if len(cfg.Sandbox.CompileCmd) != 0 || len(cfg.Sandbox.RunCmd) != 0 {
		t.Errorf("expected no command overrides, got %v %v", cfg.Sandbox.CompileCmd, cfg.Sandbox.RunCmd)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("WORKER_ID", "judge-7")
	t.Setenv("WORKER_POOL_SIZE", "16")
	t.Setenv("JUDGE_RETRY_MAX_DELAY", "5s")
	t.Setenv("WORKER_CPP_COMPILE_CMD", "/usr/bin/clang++ -O2 -o /tmp/work/program /tmp/work/solution.cpp")
	t.Setenv("WORKER_PYTHON_RUN_CMD", "/usr/bin/pypy3 /tmp/work/solution.py")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Worker.ID != "judge-7" || cfg.Worker.PoolSize != 16 {
		t.Errorf("worker = %+v", cfg.Worker)
	}
	if cfg.Judge.RetryMaxDelay != 5*time.Second {
		t.Errorf("retry max delay = %v", cfg.Judge.RetryMaxDelay)
	}
	if cfg.Sandbox.CompileCmd[domain.LangCpp] == "" || cfg.Sandbox.RunCmd[domain.LangPython] == "" {
		t.Errorf("overrides not picked up: %v %v", cfg.Sandbox.CompileCmd, cfg.Sandbox.RunCmd)
	}
	if _, ok := cfg.Sandbox.RunCmd[domain.LangJava]; ok {
		t.Error("java must keep built-in commands")
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "bogus"} {
		cfg := &Config{LogLevel: level}
		logger, err := cfg.NewLogger()
		if err != nil || logger == nil {
			t.Errorf("%s: logger=%v err=%v", level, logger, err)
		}
	}
}
