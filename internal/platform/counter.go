package platform

import (
	"regexp"
	"strconv"

	"github.com/mxkodo/pubcast/api/schemas"
)

// counterPattern is the one documented shape of the remaining/total quota
// text the targets render, e.g. "残り3/10回". It is deliberately isolated
// here: when a target changes its markup the read becomes Unknown and the
// quota loop aborts for operator attention instead of guessing a new shape.
var counterPattern = regexp.MustCompile(`残り(\d+)/(\d+)回`)

// ParseCounter extracts the quota counter from page text. A non-matching
// text yields an Unknown counter, never zero.
func ParseCounter(text string) schemas.Counter {
	m := counterPattern.FindStringSubmatch(text)
	if m == nil {
		return schemas.Counter{}
	}
	remaining, err := strconv.Atoi(m[1])
	if err != nil {
		return schemas.Counter{}
	}
	total, err := strconv.Atoi(m[2])
	if err != nil {
		return schemas.Counter{}
	}
	return schemas.Counter{Remaining: remaining, Total: total, Known: true}
}
