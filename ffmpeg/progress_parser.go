// Package ffmpeg reads the statistics ffmpeg reports while encoding.
package ffmpeg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoProgress is returned when the output holds no recognizable statistics.
var ErrNoProgress = errors.New("no progress output captured from ffmpeg")

// Progress is the latest state reported by ffmpeg.
type Progress struct {
	Frame          int64
	FPS            float64
	SizeBytes      int64
	OutTimeSeconds float64
	BitrateKbps    float64
	Speed          float64
	// Finished is set once ffmpeg reported progress=end.
	Finished bool
}

// ProgressParser parses both the key=value blocks written by -progress and
// the single-line -stats format.
type ProgressParser struct {
	frameRegex   *regexp.Regexp
	fpsRegex     *regexp.Regexp
	sizeRegex    *regexp.Regexp
	timeRegex    *regexp.Regexp
	bitrateRegex *regexp.Regexp
	speedRegex   *regexp.Regexp
}

// NewProgressParser creates a new parser for ffmpeg progress output
func NewProgressParser() *ProgressParser {
	return &ProgressParser{
		frameRegex: regexp.MustCompile(`(?:^|\s)frame=\s*(\d+)`),
		fpsRegex:   regexp.MustCompile(`(?:^|\s)fps=\s*([0-9.]+)`),
		// total_size is in bytes, the stats line reports kB.
		sizeRegex:    regexp.MustCompile(`(?:^|\s)(total_)?size=\s*(\d+)(kB|KiB)?`),
		timeRegex:    regexp.MustCompile(`(?:^|\s)(?:out_)?time=\s*([0-9:.]+)`),
		bitrateRegex: regexp.MustCompile(`(?:^|\s)bitrate=\s*([0-9.]+)kbits/s`),
		speedRegex:   regexp.MustCompile(`(?:^|\s)speed=\s*([0-9.]+)x`),
	}
}

// ParseLine applies one line of output to p and reports whether it carried
// any statistic.
func (pp *ProgressParser) ParseLine(line string, p *Progress) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "progress=continue":
		return true
	case "progress=end":
		p.Finished = true
		return true
	}

	updated := false

	if m := pp.frameRegex.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			p.Frame = v
			updated = true
		}
	}
	if m := pp.fpsRegex.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.FPS = v
			updated = true
		}
	}
	if m := pp.sizeRegex.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseInt(m[2], 10, 64); err == nil {
			if m[1] == "" && m[3] != "" {
				v *= 1024
			}
			p.SizeBytes = v
			updated = true
		}
	}
	if m := pp.timeRegex.FindStringSubmatch(line); m != nil {
		if v, ok := timeToSeconds(m[1]); ok {
			p.OutTimeSeconds = v
			updated = true
		}
	}
	if m := pp.bitrateRegex.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.BitrateKbps = v
			updated = true
		}
	}
	if m := pp.speedRegex.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.Speed = v
			updated = true
		}
	}

	return updated
}

// Parse reads ffmpeg output to the end and returns the last reported state.
func (pp *ProgressParser) Parse(r io.Reader) (Progress, error) {
	var p Progress
	seen := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	// Stats lines are separated by carriage returns when captured.
	scanner.Split(scanLinesOrReturns)
	for scanner.Scan() {
		if pp.ParseLine(scanner.Text(), &p) {
			seen = true
		}
	}
	if err := scanner.Err(); err != nil {
		return p, fmt.Errorf("error reading ffmpeg output: %w", err)
	}
	if !seen {
		return p, ErrNoProgress
	}
	return p, nil
}

func scanLinesOrReturns(data []byte, atEOF bool) (int, []byte, error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// timeToSeconds converts ffmpeg time format (HH:MM:SS.micro) to seconds
func timeToSeconds(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}

	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}

	return hours*3600 + minutes*60 + seconds, true
}
