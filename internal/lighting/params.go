package lighting

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"vocalights/internal/domain"
)

// ErrNoParameter is returned when a keyword matched but the phrase holds
// none of the values the keyword needs.
var ErrNoParameter = errors.New("no parameter matched")

var numberPattern = regexp.MustCompile(`\d+`)

// Resolve turns the entry into a concrete command for phrase.
func (e Entry) Resolve(phrase string) (domain.Command, error) {
	switch e.Kind {
	case ParamFixed:
		return e.Command, nil

	case ParamTable:
		for _, token := range strings.Fields(phrase) {
			token = strings.TrimFunc(token, unicode.IsPunct)
			for _, opt := range e.Options {
				if token == opt.Label {
					return opt.Command, nil
				}
			}
		}
		return domain.Command{}, fmt.Errorf("%w for %q", ErrNoParameter, e.Keyword)

	case ParamRange:
		level := e.Default
		if pct, ok := lastNumber(phrase); ok {
			level = scalePercent(pct, e.Max)
		}
		return domain.BrightnessSet(level, e.Transition), nil

	case ParamEffect:
		kind := domain.CommandEffectStop
		if e.Start {
			kind = domain.CommandEffectStart
		}
		return domain.Command{Kind: kind, Effect: e.Effect}, nil

	default:
		return domain.Command{}, fmt.Errorf("unknown parameter kind %d", e.Kind)
	}
}

// lastNumber returns the last integer literal in phrase. Literals too large
// for an int report math.MaxInt so they clamp to the maximum.
func lastNumber(phrase string) (int, bool) {
	matches := numberPattern.FindAllString(phrase, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[len(matches)-1])
	if err != nil {
		return int(^uint(0) >> 1), true
	}
	return n, true
}

func scalePercent(pct, max int) int {
	if pct >= 100 {
		return max
	}
	return pct * max / 100
}
