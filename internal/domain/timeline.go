package domain

import (
	"regexp"
	"strings"
)

// MilestoneDates are the five lifecycle-stage dates extracted from the
// free-text progress timeline. A nil entry means the stage has not been
// reached (or the timeline never mentioned it).
type MilestoneDates struct {
	BoardDt       *string
	ShareholderDt *string
	AcceptDt      *string
	CommitteeDt   *string
	RegisterDt    *string
}

var timelineLine = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+(.*)$`)

// ParseTimeline extracts the stage dates from a progress timeline: a
// newline-separated list of "<date> <step description>" entries. The timeline
// is chronological, so when a stage appears more than once the last entry
// wins. Lines without a parseable leading date, and lines matching no known
// stage keyword, are skipped.
//
// The function is pure: the same text always yields the same dates.
func ParseTimeline(text string) MilestoneDates {
	var m MilestoneDates
	if text == "" {
		return m
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		g := timelineLine.FindStringSubmatch(line)
		if g == nil {
			continue
		}
		dt, step := g[1], g[2]
		switch {
		case strings.Contains(step, "董事会预案"):
			m.BoardDt = &dt
		case strings.Contains(step, "股东大会通过"):
			m.ShareholderDt = &dt
		case strings.Contains(step, "交易所受理"):
			m.AcceptDt = &dt
		case strings.Contains(step, "上市委通过"):
			m.CommitteeDt = &dt
		case strings.Contains(step, "同意注册"):
			m.RegisterDt = &dt
		}
	}
	return m
}

var (
	brTag  = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTag = regexp.MustCompile(`<[^>]+>`)
)

// SanitizeHTML strips markup embedded in free-text progress fields: <br>
// variants become spaces, any remaining tags are removed, and the result is
// trimmed.
func SanitizeHTML(s string) string {
	if s == "" {
		return ""
	}
	s = brTag.ReplaceAllString(s, " ")
	s = anyTag.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
