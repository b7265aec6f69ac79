package lighting

import (
	"strings"
	"time"

	"vocalights/internal/domain"
)

type ParamKind int

const (
	ParamFixed ParamKind = iota
	ParamTable
	ParamRange
	ParamEffect
)

// Option is one labelled value of a keyword table.
type Option struct {
	Label   string
	Command domain.Command
}

// Entry maps a keyword to the command it produces. Which payload fields are
// used depends on Kind.
type Entry struct {
	Keyword   string
	Attribute domain.Attribute
	Kind      ParamKind

	// ParamFixed
	Command domain.Command

	// ParamTable
	Options []Option

	// ParamRange: a spoken percentage is scaled against Max; Default is used
	// when the phrase carries no number.
	Default    int
	Max        int
	Transition time.Duration

	// ParamEffect
	Effect string
	Start  bool
}

// Registry is the ordered keyword table of one backend. Lookup tests
// keywords in insertion order and the first contained keyword wins, so a
// phrase holding two keywords resolves to whichever was added first.
type Registry struct {
	entries []Entry
	effects map[string]domain.Effect
}

func NewRegistry(entries []Entry, effects ...domain.Effect) *Registry {
	r := &Registry{
		entries: append([]Entry(nil), entries...),
		effects: make(map[string]domain.Effect, len(effects)),
	}
	for _, e := range effects {
		r.effects[e.Name] = e
	}
	return r
}

// BuildRegistry derives the standard command set from a profile.
func BuildRegistry(p Profile) *Registry {
	entries := []Entry{
		{Keyword: "turn on", Attribute: domain.AttributePower, Kind: ParamFixed, Command: domain.PowerSet(true)},
		{Keyword: "turn off", Attribute: domain.AttributePower, Kind: ParamFixed, Command: domain.PowerSet(false)},
	}

	colors := make([]Option, 0, len(p.Palette))
	for _, c := range p.Palette {
		colors = append(colors, Option{Label: c.Name, Command: domain.ColorSet(c, p.ColorRate)})
	}
	if len(colors) > 0 {
		entries = append(entries, Entry{Keyword: "change color", Attribute: domain.AttributeColor, Kind: ParamTable, Options: colors})
	}

	entries = append(entries,
		Entry{Keyword: "dim", Attribute: domain.AttributeBrightness, Kind: ParamRange, Default: p.MinBrightness, Max: p.MaxBrightness, Transition: p.BrightnessRate},
		Entry{Keyword: "raise", Attribute: domain.AttributeBrightness, Kind: ParamRange, Default: p.MaxBrightness, Max: p.MaxBrightness, Transition: p.BrightnessRate},
	)

	var effects []domain.Effect
	if len(colors) > 0 {
		effects = append(effects,
			colorEffect("colorama", p.Palette, p.ColoramaDelay, p.ColorRate),
			colorEffect("disco", p.Palette, p.DiscoDelay, 0),
		)
	}
	effects = append(effects,
		domain.Effect{
			Name: "flash",
			Steps: []domain.Step{
				{Label: "in", Command: domain.BrightnessSet(p.MaxBrightness, p.BrightnessRate)},
				{Label: "out", Command: domain.BrightnessSet(p.MinBrightness, p.BrightnessRate)},
			},
			Delay:      p.FlashDelay,
			Transition: p.BrightnessRate,
		},
		domain.Effect{
			Name: "flicker",
			Steps: []domain.Step{
				{Label: "on", Command: domain.PowerSet(true)},
				{Label: "off", Command: domain.PowerSet(false)},
			},
			Delay: p.FlickerDelay,
		},
	)

	for _, e := range effects {
		attr := e.Steps[0].Command.Attribute()
		entries = append(entries,
			Entry{Keyword: e.Name + " on", Attribute: attr, Kind: ParamEffect, Effect: e.Name, Start: true},
			Entry{Keyword: e.Name + " off", Attribute: attr, Kind: ParamEffect, Effect: e.Name},
		)
	}

	return NewRegistry(entries, effects...)
}

func colorEffect(name string, colors []domain.Color, delay, transition time.Duration) domain.Effect {
	steps := make([]domain.Step, 0, len(colors))
	for _, c := range colors {
		steps = append(steps, domain.Step{Label: c.Name, Command: domain.ColorSet(c, transition)})
	}
	return domain.Effect{Name: name, Steps: steps, Delay: delay, Transition: transition}
}

// Lookup returns the first entry whose keyword is contained in phrase.
// phrase is expected in lower case.
func (r *Registry) Lookup(phrase string) (Entry, bool) {
	for _, e := range r.entries {
		if strings.Contains(phrase, e.Keyword) {
			return e, true
		}
	}
	return Entry{}, false
}

func (r *Registry) Effect(name string) (domain.Effect, bool) {
	e, ok := r.effects[name]
	return e, ok
}

func (r *Registry) Keywords() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Keyword)
	}
	return out
}
