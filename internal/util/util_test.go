package util

import "testing"

func TestFrameFileName(t *testing.T) {
	cases := []struct {
		index int
		want  string
	}{
		{0, "frame_000000.png"},
		{42, "frame_000042.png"},
		{123456, "frame_123456.png"},
	}
	for _, c := range cases {
		if got := FrameFileName(c.index); got != c.want {
			t.Errorf("FrameFileName(%d) = %q, want %q", c.index, got, c.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(-1, 0, 10); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := Clamp(11, 0, 10); got != 10 {
		t.Errorf("expected 10, got %v", got)
	}
	if got := Clamp(5, 0, 10); got != 5 {
		t.Errorf("expected 5, got %v", got)
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(1, 4); got != 25 {
		t.Errorf("expected 25, got %v", got)
	}
	if got := Percent(4, 4); got != 100 {
		t.Errorf("expected 100, got %v", got)
	}
	if got := Percent(0, 0); got != 0 {
		t.Errorf("expected 0 for zero total, got %v", got)
	}
	if got := Percent(9, 4); got != 100 {
		t.Errorf("expected clamp to 100, got %v", got)
	}
}
