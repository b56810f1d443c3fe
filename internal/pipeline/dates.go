package pipeline

import (
	"fmt"
	"time"
)

// portalTimeFormat is the portal's required timestamp shape: ISO8601 with
// exactly three fractional digits and a trailing Z.
const portalTimeFormat = "2006-01-02T15:04:05.000"

// Accepted source layouts. Layouts without a zone parse as UTC; layouts with
// an explicit offset keep the offset as a fixed zone so the original wall
// clock survives formatting.
var sourceTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// NormalizeTimestamp rewrites a source timestamp into the portal format.
// A value without an explicit offset is assumed to already be UTC. A value
// with an offset keeps its wall-clock numerals and only the designator is
// rewritten to Z; no clock shift is performed. That matches the behavior the
// portal has accepted so far, see the open question in DESIGN.md before
// changing it.
func NormalizeTimestamp(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	for _, layout := range sourceTimeLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		return t.Format(portalTimeFormat) + "Z", nil
	}

	return "", fmt.Errorf("unrecognized timestamp %q", value)
}
