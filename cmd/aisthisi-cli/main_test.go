package main

import (
	"path/filepath"
	"testing"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1767268800", 1767268800, false},
		{"0", 0, false},
		{"2026-01-01T12:00:00Z", 1767268800, false},
		{"2026-01-01T14:00:00+02:00", 1767268800, false},
		{"tomorrow", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTime(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTime(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseTime(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestKeystoreDir(t *testing.T) {
	got := keystoreDir("/data", "testnet")
	want := filepath.Join("/data", "testnet", "keystore")
	if got != want {
		t.Errorf("keystoreDir = %q, want %q", got, want)
	}
}
