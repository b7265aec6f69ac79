package domain

import (
	"fmt"
	"strings"
)

type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultInfo
	ResultError
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultInfo:
		return "info"
	case ResultError:
		return "error"
	default:
		return fmt.Sprintf("result(%d)", int(k))
	}
}

// Result is the outcome of one phrase against one device.
type Result struct {
	Kind    ResultKind
	Device  string
	Keyword string
	Targets []string
	Message string
}

func Success(device, keyword string, targets ...string) Result {
	return Result{Kind: ResultSuccess, Device: device, Keyword: keyword, Targets: targets}
}

func Info(device, message string) Result {
	return Result{Kind: ResultInfo, Device: device, Message: message}
}

func Failure(device string, err error) Result {
	return Result{Kind: ResultError, Device: device, Message: err.Error()}
}

// Summary is the short text reported back to the speaker.
func (r Result) Summary() string {
	switch r.Kind {
	case ResultSuccess:
		return r.Keyword
	case ResultError:
		return "Error: " + r.Message
	default:
		return r.Message
	}
}

func (r Result) String() string {
	switch r.Kind {
	case ResultSuccess:
		return fmt.Sprintf("%s: %s (%s)", r.Device, r.Keyword, strings.Join(r.Targets, ", "))
	default:
		return fmt.Sprintf("%s: %s", r.Device, r.Summary())
	}
}
