package domain

import (
	"fmt"
	"time"
)

type CommandKind int

const (
	CommandPowerSet CommandKind = iota
	CommandColorSet
	CommandBrightnessSet
	CommandEffectStart
	CommandEffectStop
)

func (k CommandKind) String() string {
	switch k {
	case CommandPowerSet:
		return "power_set"
	case CommandColorSet:
		return "color_set"
	case CommandBrightnessSet:
		return "brightness_set"
	case CommandEffectStart:
		return "effect_start"
	case CommandEffectStop:
		return "effect_stop"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Attribute is the device property a command alters.
type Attribute string

const (
	AttributePower      Attribute = "power"
	AttributeColor      Attribute = "color"
	AttributeBrightness Attribute = "brightness"
)

// Command is a resolved device command. Only the fields relevant to Kind are
// meaningful; Brightness is in the backend's native units.
type Command struct {
	Kind       CommandKind
	Power      bool
	Color      Color
	Brightness int
	Transition time.Duration
	Effect     string
}

func PowerSet(on bool) Command {
	return Command{Kind: CommandPowerSet, Power: on}
}

func ColorSet(c Color, transition time.Duration) Command {
	return Command{Kind: CommandColorSet, Color: c, Transition: transition}
}

func BrightnessSet(level int, transition time.Duration) Command {
	return Command{Kind: CommandBrightnessSet, Brightness: level, Transition: transition}
}

func (c Command) Attribute() Attribute {
	switch c.Kind {
	case CommandColorSet:
		return AttributeColor
	case CommandBrightnessSet:
		return AttributeBrightness
	default:
		return AttributePower
	}
}

func (c Command) String() string {
	switch c.Kind {
	case CommandPowerSet:
		if c.Power {
			return "power on"
		}
		return "power off"
	case CommandColorSet:
		return "color " + c.Color.Name
	case CommandBrightnessSet:
		return fmt.Sprintf("brightness %d", c.Brightness)
	case CommandEffectStart:
		return c.Effect + " on"
	case CommandEffectStop:
		return c.Effect + " off"
	default:
		return c.Kind.String()
	}
}

// Step is one labelled entry of an effect's step table.
type Step struct {
	Label   string
	Command Command
}

// Effect describes a looping behavior. Steps are applied in order and wrap
// around until the loop is canceled.
type Effect struct {
	Name       string
	Steps      []Step
	Delay      time.Duration
	Transition time.Duration
}
