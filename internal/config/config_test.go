package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func setRequired() {
	os.Setenv("JWT_ACCESS_SECRET", "access-secret-0123456789abcdef0123456789")
	os.Setenv("JWT_REFRESH_SECRET", "refresh-secret-0123456789abcdef012345678")
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setRequired()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":3001" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":3001")
	}
	if cfg.OpsGRPCAddr != ":9090" {
		t.Errorf("OpsGRPCAddr = %q, want %q", cfg.OpsGRPCAddr, ":9090")
	}
	if cfg.JWTIssuer != "xend-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "xend-auth")
	}
	if cfg.JWTAccessAlg != "HS256" || cfg.JWTRefreshAlg != "HS256" {
		t.Errorf("algs = %q/%q, want HS256/HS256", cfg.JWTAccessAlg, cfg.JWTRefreshAlg)
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 7*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.RefreshTTL())
	}
	if cfg.PresenceMarkerTTL() != 300*time.Second {
		t.Errorf("PresenceMarkerTTL = %v, want 300s", cfg.PresenceMarkerTTL())
	}
	if cfg.PresenceKeyPrefix != "presence:" {
		t.Errorf("PresenceKeyPrefix = %q", cfg.PresenceKeyPrefix)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.LoginIdentifier != LoginIdentifierEmail {
		t.Errorf("LoginIdentifier = %q, want email", cfg.LoginIdentifier)
	}
	if cfg.AutoProvisionOnLogin {
		t.Error("AutoProvisionOnLogin should default to false")
	}
	if cfg.EventsKafkaTopic != "auth-events" {
		t.Errorf("EventsKafkaTopic = %q", cfg.EventsKafkaTopic)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	setRequired()
	os.Setenv("HTTP_ADDR", ":8081")
	os.Setenv("LOGIN_IDENTIFIER", "PHONE")
	os.Setenv("AUTO_PROVISION_ON_LOGIN", "true")
	os.Setenv("BCRYPT_COST", "10")
	os.Setenv("PRESENCE_TTL", "60s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q, want :8081", cfg.HTTPAddr)
	}
	if cfg.LoginIdentifier != LoginIdentifierPhone {
		t.Errorf("LoginIdentifier = %q, want phone", cfg.LoginIdentifier)
	}
	if !cfg.AutoProvisionOnLogin {
		t.Error("AutoProvisionOnLogin = false, want true")
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.PresenceMarkerTTL() != time.Minute {
		t.Errorf("PresenceMarkerTTL = %v, want 1m", cfg.PresenceMarkerTTL())
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secrets", map[string]string{"JWT_ACCESS_SECRET": "", "JWT_REFRESH_SECRET": ""}},
		{"identical secrets", map[string]string{"JWT_ACCESS_SECRET": "same-secret", "JWT_REFRESH_SECRET": "same-secret"}},
		{"bad alg", map[string]string{"JWT_ACCESS_ALG": "RS256"}},
		{"bad identifier", map[string]string{"LOGIN_IDENTIFIER": "username"}},
		{"bcrypt too low", map[string]string{"BCRYPT_COST": "3"}},
		{"bcrypt too high", map[string]string{"BCRYPT_COST": "32"}},
		{"wildcard cors in production", map[string]string{"APP_ENV": "production", "CORS_ALLOW_ORIGINS": "*"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			setRequired()
			for k, v := range tc.env {
				os.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Errorf("Load should fail for %s", tc.name)
			}
		})
	}
}

func TestDurations_FallbackOnInvalid(t *testing.T) {
	cfg := &Config{JWTAccessTTL: "soon", JWTRefreshTTL: "-1h", PresenceTTL: ""}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.RefreshTTL())
	}
	if cfg.PresenceMarkerTTL() != 300*time.Second {
		t.Errorf("PresenceMarkerTTL = %v, want 300s", cfg.PresenceMarkerTTL())
	}
}

func TestKafkaBrokersList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{" a:1 , ,b:2 ", []string{"a:1", "b:2"}},
	}
	for _, tc := range tests {
		cfg := &Config{KafkaBrokers: tc.in}
		got := cfg.KafkaBrokersList()
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("KafkaBrokersList(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoadBase_SkipsTokenSettings(t *testing.T) {
	os.Clearenv()
	cfg, err := LoadBase()
	if err != nil {
		t.Fatalf("LoadBase: %v", err)
	}
	if cfg.KafkaGroupID != "xend-auth-audit" {
		t.Errorf("KafkaGroupID = %q", cfg.KafkaGroupID)
	}
	if _, err := Load(); err == nil {
		t.Error("Load should still require token secrets")
	}

	os.Setenv("BCRYPT_COST", "40")
	if _, err := LoadBase(); err == nil {
		t.Error("LoadBase should reject an out of range bcrypt cost")
	}
}

func TestOpsGRPCEnabled(t *testing.T) {
	tests := []struct {
		env  string
		set  bool
		want bool
	}{
		{"", false, true},
		{":9191", true, true},
		{"off", true, false},
		{" OFF ", true, false},
		{"", true, true},
	}
	for _, tc := range tests {
		os.Clearenv()
		setRequired()
		if tc.set {
			os.Setenv("OPS_GRPC_ADDR", tc.env)
		}
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got := cfg.OpsGRPCEnabled(); got != tc.want {
			t.Errorf("OPS_GRPC_ADDR=%q (set=%t): enabled = %t, want %t", tc.env, tc.set, got, tc.want)
		}
	}
}
