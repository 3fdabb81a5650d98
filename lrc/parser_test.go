package lrc

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParse_Basic(t *testing.T) {
	doc := "[00:12.34]First line\n[00:15.00]Second line"

	lines := Parse(doc)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if !almostEqual(lines[0].TimeSeconds, 12.34) {
		t.Errorf("Expected first line at 12.34s, got %v", lines[0].TimeSeconds)
	}
	if lines[0].Text != "First line" {
		t.Errorf("Expected text 'First line', got %q", lines[0].Text)
	}
	if !almostEqual(lines[1].TimeSeconds, 15.0) {
		t.Errorf("Expected second line at 15.0s, got %v", lines[1].TimeSeconds)
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	for _, doc := range []string{"", "   ", "\n\n\n"} {
		if got := Parse(doc); got != nil {
			t.Errorf("Parse(%q): expected nil, got %v", doc, got)
		}
	}
}

func TestParse_NoTimedLines(t *testing.T) {
	doc := "Just plain text\nAnother plain line"
	if got := Parse(doc); got != nil {
		t.Errorf("Expected nil for a document with no timestamps, got %v", got)
	}
}

func TestParse_DropsUntimedAndEmptyLines(t *testing.T) {
	doc := "Intro without timestamp\n[00:10.00]Timed line\n[00:20.00]\n[00:30.00]   "

	lines := Parse(doc)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	if lines[0].Text != "Timed line" {
		t.Errorf("Expected surviving line 'Timed line', got %q", lines[0].Text)
	}
}

func TestParse_MetadataTagsSkipped(t *testing.T) {
	doc := "[ar:Some Artist]\n[ti:Some Title]\n[offset:500]\n[00:05.50]Real line"

	lines := Parse(doc)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	if !almostEqual(lines[0].TimeSeconds, 5.5) {
		t.Errorf("Expected 5.5s, got %v", lines[0].TimeSeconds)
	}
}

func TestParse_MultipleTimestampsPerLine(t *testing.T) {
	doc := "[00:10.00][01:10.00][02:10.00]Chorus"

	lines := Parse(doc)
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	want := []float64{10, 70, 130}
	for i, w := range want {
		if !almostEqual(lines[i].TimeSeconds, w) {
			t.Errorf("Line %d: expected %vs, got %v", i, w, lines[i].TimeSeconds)
		}
		if lines[i].Text != "Chorus" {
			t.Errorf("Line %d: expected text 'Chorus', got %q", i, lines[i].Text)
		}
	}
}

func TestParse_FractionWidth(t *testing.T) {
	tests := []struct {
		doc  string
		want float64
	}{
		{"[00:01.50]half", 1.5},
		{"[00:01.500]half", 1.5},
		{"[00:01.05]five hundredths", 1.05},
		{"[00:01.005]five thousandths", 1.005},
	}

	for _, tt := range tests {
		lines := Parse(tt.doc)
		if len(lines) != 1 {
			t.Fatalf("Parse(%q): expected 1 line, got %d", tt.doc, len(lines))
		}
		if !almostEqual(lines[0].TimeSeconds, tt.want) {
			t.Errorf("Parse(%q): expected %vs, got %v", tt.doc, tt.want, lines[0].TimeSeconds)
		}
	}
}

func TestParse_OutOfOrderPreserved(t *testing.T) {
	doc := "[00:20.00]Second\n[00:10.00]First"

	lines := Parse(doc)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	// Document order is preserved, not timestamp order.
	if lines[0].Text != "Second" || lines[1].Text != "First" {
		t.Errorf("Expected document order preserved, got %q then %q", lines[0].Text, lines[1].Text)
	}
}

func TestParse_WindowsLineEndings(t *testing.T) {
	doc := "[00:01.00]One\r\n[00:02.00]Two\r\n"

	lines := Parse(doc)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0].Text != "One" || lines[1].Text != "Two" {
		t.Errorf("Expected trimmed texts, got %q and %q", lines[0].Text, lines[1].Text)
	}
}
