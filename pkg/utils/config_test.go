package utils

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestParseRefundWindows(t *testing.T) {
	got, err := ParseRefundWindows(" Cleaning=48h, plumbing=96h ,")
	if err != nil {
		t.Fatalf("ParseRefundWindows: %v", err)
	}
	if got["cleaning"] != 48*time.Hour || got["plumbing"] != 96*time.Hour {
		t.Fatalf("unexpected windows: %v", got)
	}

	for _, bad := range []string{"cleaning", "cleaning=soon", "cleaning=-1h"} {
		if _, err := ParseRefundWindows(bad); err == nil {
			t.Errorf("ParseRefundWindows(%q) succeeded", bad)
		}
	}
}

func TestBuildConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("REFUND_WINDOWS", "electrical=24h")

	cfg, err := buildConfig(v)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Engagement.ObservationWindow != 72*time.Hour {
		t.Errorf("D1 = %s", cfg.Engagement.ObservationWindow)
	}
	if cfg.Engagement.RefundWindow("Electrical") != 24*time.Hour {
		t.Errorf("electrical window = %s", cfg.Engagement.RefundWindow("Electrical"))
	}
	if cfg.Engagement.RefundWindow("gardening") != 72*time.Hour {
		t.Errorf("default window = %s", cfg.Engagement.RefundWindow("gardening"))
	}
	if cfg.App.StoreDriver != StoreDriverPostgres || cfg.Engagement.HoldOn != HoldOnConfirm {
		t.Errorf("unexpected driver/hold-on: %+v", cfg.App)
	}
}

func TestBuildConfigRejectsUnknownDriver(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORE_DRIVER", "sqlite")
	if _, err := buildConfig(v); err == nil {
		t.Fatal("expected error for unknown store driver")
	}
}

func TestBuildConfigTrustedProxies(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := buildConfig(v)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if len(cfg.RateLimit.TrustedProxies) != 0 {
		t.Fatalf("trusted proxies by default: %v", cfg.RateLimit.TrustedProxies)
	}

	v.Set("RATE_LIMIT_TRUSTED_PROXIES", " 10.0.0.0/8, 192.168.1.1 ,")
	cfg, err = buildConfig(v)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if got := cfg.RateLimit.TrustedProxies; len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "192.168.1.1" {
		t.Fatalf("trusted proxies = %v", got)
	}
}
