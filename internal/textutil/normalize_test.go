package textutil

import "testing"

func TestNormalizeForMatch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Die drei ???", "drei"},
		{"Bibi & Tina", "bibi tina"},
		{"  The   Beatles ", "beatles"},
		{"Der", ""},
		{"Café Größe", "cafe groesse"},
		{"Benjamin Blümchen - Folge 12", "benjamin bluemchen folge 12"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeForMatch(tc.in); got != tc.want {
			t.Fatalf("NormalizeForMatch(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
