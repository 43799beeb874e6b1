package tui

import "testing"

func TestValidateMaxTokens(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"8096", false},
		{"1", false},
		{"128000", false},
		{"  4096  ", false},
		{"0", true},
		{"-5", true},
		{"128001", true},
		{"abc", true},
		{"", true},
	}
	for _, tc := range cases {
		err := validateMaxTokens(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("validateMaxTokens(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
	}
}

func TestValidateTemperature(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"1.0", false},
		{"0", false},
		{"0.7", false},
		{"1.1", true},
		{"-0.1", true},
		{"warm", true},
		{"", true},
	}
	for _, tc := range cases {
		err := validateTemperature(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("validateTemperature(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
	}
}
