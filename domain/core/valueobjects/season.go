package valueobjects

import (
	"fmt"
	"strings"
)

// Season is the term of an academic semester.
type Season string

const (
	SeasonFall   Season = "fall"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonWinter Season = "winter"
)

// ParseSeason normalizes and validates a season value.
func ParseSeason(s string) (Season, error) {
	switch Season(strings.ToLower(strings.TrimSpace(s))) {
	case SeasonFall:
		return SeasonFall, nil
	case SeasonSpring:
		return SeasonSpring, nil
	case SeasonSummer:
		return SeasonSummer, nil
	case SeasonWinter:
		return SeasonWinter, nil
	}
	return "", fmt.Errorf("unknown season %q", s)
}

func (s Season) String() string { return string(s) }
