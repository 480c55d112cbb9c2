package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBarTracksSteps(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, ProgressBarOptions{
		Total:   4,
		Width:   8,
		Message: "building",
		NoColor: true,
	})

	bar.Add(1)
	out := buf.String()
	if !strings.Contains(out, "1/4 building") {
		t.Errorf("after one step, output = %q", out)
	}
	if !strings.Contains(out, "[██░░░░░░]") {
		t.Errorf("bar fill wrong after one step: %q", out)
	}

	buf.Reset()
	bar.Add(1)
	if out := buf.String(); !strings.Contains(out, "2/4 building") {
		t.Errorf("after two steps, output = %q", out)
	}
}

func TestProgressBarFinishFillsAndEndsLine(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, ProgressBarOptions{Total: 3, Width: 6, NoColor: true})

	bar.Add(1)
	buf.Reset()
	bar.Finish()

	out := buf.String()
	if !strings.Contains(out, "[██████] 3/3") {
		t.Errorf("Finish output = %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("Finish should end the line, got %q", out)
	}
}

func TestProgressBarClampsOvershoot(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, ProgressBarOptions{Total: 2, Width: 4, NoColor: true})

	bar.Add(5)
	if out := buf.String(); !strings.Contains(out, "2/2") {
		t.Errorf("overshoot should clamp to total, got %q", out)
	}
}

func TestProgressBarZeroTotalStaysSilent(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, ProgressBarOptions{Total: 0, NoColor: true})

	bar.Add(1)
	if buf.Len() != 0 {
		t.Errorf("expected no output with zero total, got %q", buf.String())
	}
}
