// Package lrc parses LRC-style synced lyrics documents into timed lines.
package lrc

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Line is a single timed lyric line.
type Line struct {
	TimeSeconds float64 `json:"time"`
	Text        string  `json:"text"`
}

var (
	// LRC timestamp pattern: [mm:ss.xx] or [mm:ss.xxx]
	timeTagRegex = regexp.MustCompile(`\[(\d{1,2}):(\d{2})\.(\d{2,3})\]`)

	// Metadata tags pattern: [tag:value], e.g. [ar:Artist], [offset:500]
	metadataRegex = regexp.MustCompile(`^\[([a-zA-Z]+):([^\]]*)\]$`)
)

// Parse converts a raw LRC document into timed lines.
//
// Lines without a leading timestamp are dropped, as are timed lines whose
// remaining text is empty. A line may carry several timestamps before its
// text (karaoke repeats); each timestamp yields its own Line. The fractional
// field is a decimal fraction of a second, so ".5", ".50" and ".500" all
// mean half a second. No ordering is imposed on the result; callers must
// tolerate duplicate and out-of-order times.
//
// Returns nil for an empty document or one containing no timed lines.
func Parse(document string) []Line {
	if strings.TrimSpace(document) == "" {
		return nil
	}

	var lines []Line

	for _, rawLine := range strings.Split(document, "\n") {
		rawLine = strings.TrimSpace(rawLine)
		if rawLine == "" {
			continue
		}

		// Skip metadata tags like [ar:Artist], [ti:Title], [offset:500]
		if metadataRegex.MatchString(rawLine) {
			continue
		}

		// Collect all timestamps at the beginning of the line
		var times []float64
		text := rawLine
		for {
			loc := timeTagRegex.FindStringIndex(text)
			if loc == nil || loc[0] != 0 {
				break
			}

			match := timeTagRegex.FindStringSubmatch(text)
			times = append(times, tagToSeconds(match[1], match[2], match[3]))
			text = text[loc[1]:]
		}

		text = strings.TrimSpace(text)
		if text == "" || len(times) == 0 {
			continue
		}

		for _, t := range times {
			lines = append(lines, Line{TimeSeconds: t, Text: text})
		}
	}

	if len(lines) == 0 {
		return nil
	}
	return lines
}

// tagToSeconds converts the captured minute/second/fraction fields to
// seconds. The fraction field keeps its textual width: two digits are
// hundredths, three digits are thousandths.
func tagToSeconds(minutes, seconds, fraction string) float64 {
	m, _ := strconv.ParseFloat(minutes, 64)
	s, _ := strconv.ParseFloat(seconds, 64)
	f, _ := strconv.ParseFloat(fraction, 64)

	return m*60 + s + f/math.Pow10(len(fraction))
}
