// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"strings"
	"testing"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PAEFI_SESSION_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoad_Defaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "./data/paefi.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr())
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
	if cfg.AuditRetentionDays != 730 {
		t.Errorf("AuditRetentionDays = %d, want 730", cfg.AuditRetentionDays)
	}
	if cfg.UseRedisCache() {
		t.Error("Redis cache enabled without URL")
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without session secret")
	}
}

func TestLoad_ShortSecret(t *testing.T) {
	t.Setenv("PAEFI_SESSION_SECRET", "too-short")

	_, err := Load()
	if err == nil {
		t.Fatal("short secret accepted")
	}
	if !strings.Contains(err.Error(), "32 bytes") {
		t.Errorf("unhelpful error: %v", err)
	}
}

func TestLoad_WeakSecret(t *testing.T) {
	t.Setenv("PAEFI_SESSION_SECRET", "change-me-to-32-byte-secret-key!")

	if _, err := Load(); err == nil {
		t.Fatal("known default secret accepted")
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	validEnv(t)
	t.Setenv("PAEFI_ENV", "staging")

	if _, err := Load(); err == nil {
		t.Fatal("unknown environment accepted")
	}
}

func TestLoad_InvalidRetention(t *testing.T) {
	validEnv(t)
	t.Setenv("PAEFI_AUDIT_RETENTION_DAYS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("zero retention accepted")
	}
}

func TestLoad_RedisCache(t *testing.T) {
	validEnv(t)
	t.Setenv("PAEFI_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.UseRedisCache() {
		t.Error("UseRedisCache = false with URL set")
	}
	if cfg.CachePrefix != "paefi:" {
		t.Errorf("CachePrefix = %q", cfg.CachePrefix)
	}
}
