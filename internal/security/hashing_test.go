package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "secret123" {
		t.Fatalf("Hash returned %q", hash)
	}
	if err := h.Compare(hash, "secret123"); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if err := h.Compare(hash, "wrong-password"); err == nil {
		t.Fatal("Compare with wrong password should fail")
	}
}

func TestHasher_LengthPolicy(t *testing.T) {
	h := NewHasher(4)
	tests := []struct {
		length  int
		wantErr error
	}{
		{7, ErrPasswordTooShort},
		{8, nil},
		{24, nil},
		{25, ErrPasswordTooLong},
	}
	for _, tc := range tests {
		pw := strings.Repeat("p", tc.length)
		_, err := h.Hash(pw)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("Hash(len=%d) err = %v, want %v", tc.length, err, tc.wantErr)
		}
	}
}

func TestHasher_ByteCeiling(t *testing.T) {
	h := NewHasher(4)
	tests := []struct {
		name    string
		pw      string
		wantErr error
	}{
		{"18 four-byte chars", strings.Repeat("😀", 18), nil},
		{"19 four-byte chars", strings.Repeat("😀", 19), ErrPasswordTooManyBytes},
		{"24 four-byte chars", strings.Repeat("😀", 24), ErrPasswordTooManyBytes},
		{"24 three-byte chars", strings.Repeat("€", 24), nil},
	}
	for _, tc := range tests {
		_, err := h.Hash(tc.pw)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: Hash err = %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestCheckPolicy_CountsCharacters(t *testing.T) {
	// 8 multi-byte characters are 8 characters, not 24 bytes.
	if err := CheckPolicy("ééééééé€"); err != nil {
		t.Errorf("CheckPolicy: %v", err)
	}
}

func TestHasher_Cost(t *testing.T) {
	if h := NewHasher(12); h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h := NewHasher(0); h.Cost != 12 {
		t.Errorf("zero cost should default to 12, got %d", h.Cost)
	}
	if h := NewHasher(2); h.Cost != 4 {
		t.Errorf("cost 2 should clamp to 4, got %d", h.Cost)
	}
	if h := NewHasher(40); h.Cost != 31 {
		t.Errorf("cost 40 should clamp to 31, got %d", h.Cost)
	}
}

func TestParseSecret(t *testing.T) {
	inline := "inline-secret-0123456789abcdef-0123"
	got, err := ParseSecret("  " + inline + "  ")
	if err != nil || string(got) != inline {
		t.Fatalf("ParseSecret inline = %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "jwt.secret")
	fileSecret := "file-secret-0123456789abcdef-012345"
	if err := os.WriteFile(path, []byte(fileSecret+"\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err = ParseSecret(path)
	if err != nil || string(got) != fileSecret {
		t.Fatalf("ParseSecret file = %q, %v", got, err)
	}

	for _, bad := range []string{"", "   ", "short"} {
		if _, err := ParseSecret(bad); !errors.Is(err, ErrInvalidSecret) {
			t.Errorf("ParseSecret(%q) err = %v, want ErrInvalidSecret", bad, err)
		}
	}
}
