package main

import "testing"

func TestDriftPPM(t *testing.T) {
	cases := []struct {
		mcu, host int64
		want      float64
	}{
		{1000000, 1000000, 0},
		{1000050, 1000000, 50},
		{999900, 1000000, -100},
		{5, 0, 0},
	}
	for _, c := range cases {
		if got := driftPPM(c.mcu, c.host); got != c.want {
			t.Errorf("driftPPM(%d, %d): expected %v, got %v", c.mcu, c.host, c.want, got)
		}
	}
}
