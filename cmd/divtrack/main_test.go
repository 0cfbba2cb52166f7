package main

import "testing"

func TestConfigDirFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"quote", "AAPL"}, ""},
		{[]string{"--config", "/tmp/dt", "quote"}, "/tmp/dt"},
		{[]string{"quote", "--config=/etc/dt"}, "/etc/dt"},
		{[]string{"--", "--config", "x"}, ""},
		{[]string{"--config"}, ""},
	}
	for _, tt := range tests {
		if got := configDirFromArgs(tt.args); got != tt.want {
			t.Errorf("configDirFromArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
