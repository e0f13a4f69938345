package render

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// timeTokenPattern matches the encode clock FFmpeg prints on its stats line,
// e.g. "frame= 512 fps=120 time=00:03:25.48 bitrate=...".
var timeTokenPattern = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2})(?:\.(\d+))?`)

// ParseEncodedSeconds extracts the seconds of output encoded so far from an
// FFmpeg stats line. Returns false for lines without a time token.
func ParseEncodedSeconds(line string) (float64, bool) {
	match := timeTokenPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.Atoi(match[3])
	total := float64(hours*3600 + minutes*60 + seconds)
	if match[4] != "" {
		frac, err := strconv.ParseFloat("0."+match[4], 64)
		if err == nil {
			total += frac
		}
	}
	return total, true
}

// Estimate is a point-in-time view of a running encode.
type Estimate struct {
	Percent  int
	Speed    float64
	ETA      time.Time
	ETALabel string
}

// EstimateProgress converts the encode clock into a percentage and an arrival
// estimate. Percent is capped at 99 while the encode runs: 100 is reserved
// for a confirmed clean exit. Speed is output seconds per wall second, so the
// remaining wall time is the remaining output divided by that rate.
func EstimateProgress(encodedSeconds float64, targetSeconds int, elapsed time.Duration, now time.Time) (Estimate, bool) {
	if targetSeconds <= 0 || encodedSeconds < 0 {
		return Estimate{}, false
	}
	percent := int(encodedSeconds * 100 / float64(targetSeconds))
	if percent > 99 {
		percent = 99
	}
	est := Estimate{Percent: percent}

	if elapsed <= 0 || encodedSeconds == 0 {
		return est, true
	}
	est.Speed = encodedSeconds / elapsed.Seconds()
	remaining := float64(targetSeconds) - encodedSeconds
	if remaining < 0 {
		remaining = 0
	}
	est.ETA = now.Add(time.Duration(remaining / est.Speed * float64(time.Second)))
	est.ETALabel = fmt.Sprintf("ETA %s (%.1fx)", est.ETA.Format("15:04:05"), est.Speed)
	return est, true
}
