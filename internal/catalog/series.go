package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/alextreichler/detailacademy/internal/models"
)

// SeriesInfo is a course's place in a multi-part sequence.
type SeriesInfo struct {
	Name string
	Part int
}

// "<name> Part <n>", with anything after the number treated as a suffix.
var partPattern = regexp.MustCompile(`(?i)^(.+?)\s+part\b\s*(\d*)`)

// ParseSeries reports whether the course belongs to a series and where.
// An explicit series tag wins over the title convention. The part number
// comes from the explicit field, then the title, then defaults to 1.
func ParseSeries(c models.Course) (SeriesInfo, bool) {
	var info SeriesInfo
	var titlePart string

	if c.SeriesName != nil && strings.TrimSpace(*c.SeriesName) != "" {
		info.Name = strings.TrimSpace(*c.SeriesName)
		if m := partPattern.FindStringSubmatch(c.Title); m != nil {
			titlePart = m[2]
		}
	} else {
		m := partPattern.FindStringSubmatch(c.Title)
		if m == nil {
			return SeriesInfo{}, false
		}
		info.Name = strings.TrimSpace(m[1])
		if info.Name == "" {
			return SeriesInfo{}, false
		}
		titlePart = m[2]
	}

	switch {
	case c.PartNumber != nil:
		info.Part = *c.PartNumber
	default:
		info.Part = parsePart(titlePart)
	}
	return info, true
}

func parsePart(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 1
	}
	return n
}

// GroupBySeries collapses every series to its lowest part. Standalone
// courses pass through untouched, and each series keeps the slot of its
// first member in the input. Equal parts keep the earlier course.
func GroupBySeries(courses []models.Course) []models.Course {
	out := make([]models.Course, 0, len(courses))
	slot := make(map[string]int)
	part := make(map[string]int)

	for _, c := range courses {
		info, ok := ParseSeries(c)
		if !ok {
			out = append(out, c)
			continue
		}
		i, seen := slot[info.Name]
		if !seen {
			slot[info.Name] = len(out)
			part[info.Name] = info.Part
			out = append(out, c)
			continue
		}
		if info.Part < part[info.Name] {
			out[i] = c
			part[info.Name] = info.Part
		}
	}
	return out
}

// IsMultiPartSeries decides the SERIES badge: the course must be a series
// member and at least one other course in all must share its series name.
func IsMultiPartSeries(c models.Course, all []models.Course) bool {
	info, ok := ParseSeries(c)
	if !ok {
		return false
	}
	members := 0
	for _, other := range all {
		if o, ok := ParseSeries(other); ok && o.Name == info.Name {
			members++
			if members >= 2 {
				return true
			}
		}
	}
	return false
}

// Card is one entry of the grouped catalog page.
type Card struct {
	Course models.Course
	Series bool
	// SeriesName is set only when Series is true.
	SeriesName string
}

// Listing groups the shown courses and flags multi-part series for the
// badge. Series membership is counted over all, so a filtered page still
// badges a part whose siblings were filtered out.
func Listing(shown, all []models.Course) []Card {
	grouped := GroupBySeries(shown)
	cards := make([]Card, 0, len(grouped))
	for _, c := range grouped {
		card := Card{Course: c}
		if IsMultiPartSeries(c, all) {
			info, _ := ParseSeries(c)
			card.Series = true
			card.SeriesName = info.Name
		}
		cards = append(cards, card)
	}
	return cards
}
