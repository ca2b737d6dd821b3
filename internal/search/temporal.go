package search

import (
	"strings"
	"time"
)

// unknownAgeWeight applies when the publication date is missing or
// unparsable: neither boosted nor fully penalized.
const unknownAgeWeight = 0.7

// pubDateLayouts tried in order when parsing feed dates.
var pubDateLayouts = []string{
	time.RFC1123,  // Mon, 02 Jan 2006 15:04:05 MST
	time.RFC1123Z, // Mon, 02 Jan 2006 15:04:05 -0700
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// temporalWeight maps article age to a recency multiplier. Fresh news gets
// an aggressive boost, stale news a penalty:
//
//	< 12h  1.5    < 24h  1.3    < 3d  1.1
//	< 7d   1.0    < 30d  0.8    else  0.5
//
// Boundaries are exclusive: an article exactly 12 hours old weighs 1.3.
func temporalWeight(pubDate string, now time.Time) float64 {
	t, ok := parsePubDate(pubDate)
	if !ok {
		return unknownAgeWeight
	}

	ageHours := now.Sub(t).Hours()
	switch {
	case ageHours < 12:
		return 1.5
	case ageHours < 24:
		return 1.3
	case ageHours < 72:
		return 1.1
	case ageHours < 168:
		return 1.0
	case ageHours < 720:
		return 0.8
	default:
		return 0.5
	}
}

// parsePubDate tries the known feed date layouts. Times without a zone are
// taken as UTC.
func parsePubDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
