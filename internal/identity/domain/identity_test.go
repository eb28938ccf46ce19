package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"apple", ProviderApple, false},
		{" Google ", ProviderGoogle, false},
		{"facebook", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := ParseProvider(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseProvider(%q) = %q, %v", tc.in, got, err)
		}
		if tc.wantErr && !errors.Is(err, ErrUnknownProvider) {
			t.Errorf("ParseProvider(%q) err = %v, want ErrUnknownProvider", tc.in, err)
		}
	}
}

func TestProvider_ColumnAndAccessors(t *testing.T) {
	var i Identity
	for _, p := range []Provider{ProviderApple, ProviderGoogle} {
		if p.Column() == "" {
			t.Errorf("%s has no column", p)
		}
		i.SetProviderID(p, "id-"+string(p))
	}
	if i.AppleID != "id-apple" || i.GoogleID != "id-google" {
		t.Errorf("SetProviderID: apple=%q google=%q", i.AppleID, i.GoogleID)
	}
	if i.ProviderID(ProviderGoogle) != "id-google" {
		t.Errorf("ProviderID(google) = %q", i.ProviderID(ProviderGoogle))
	}
	if Provider("other").Column() != "" || i.ProviderID("other") != "" {
		t.Error("unknown provider should map to nothing")
	}
}

func TestIdentity_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      Identity
		wantErr bool
	}{
		{"email only", Identity{ID: "1", Email: "a@x.com"}, false},
		{"phone only", Identity{ID: "1", PhoneNumber: "+1555"}, false},
		{"provider only", Identity{ID: "1", AppleID: "apl"}, false},
		{"no identifier", Identity{ID: "1", FirstName: "Jo"}, true},
		{"no id", Identity{Email: "a@x.com"}, true},
		{"bad role", Identity{ID: "1", Email: "a@x.com", Role: "root"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
	i := Identity{ID: "1", Email: "a@x.com"}
	_ = i.Validate()
	if i.Role != RoleUser {
		t.Errorf("default role = %q, want user", i.Role)
	}
}

func TestIdentity_OnboardingHints(t *testing.T) {
	i := Identity{FirstName: "Jo", LastName: " "}
	if !i.NeedsName() {
		t.Error("blank last name should need name")
	}
	if !i.NeedsPhone() {
		t.Error("missing phone should need phone")
	}
	i.LastName, i.PhoneNumber = "Do", "+1555"
	if i.NeedsName() || i.NeedsPhone() {
		t.Error("complete identity should need nothing")
	}
}

func TestPublic_OmitsPasswordHash(t *testing.T) {
	i := Identity{ID: "1", Email: "a@x.com", PasswordHash: "$2a$12$secret", Role: RoleUser}
	b, err := json.Marshal(i.Public())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "secret") || strings.Contains(s, "password") {
		t.Errorf("public view leaks password: %s", s)
	}
	if !strings.Contains(s, `"isProfileComplete":false`) {
		t.Errorf("public view should use camelCase keys: %s", s)
	}
}
