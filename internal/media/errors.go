package media

import (
	"errors"
	"fmt"
)

// ErrMedia is the sentinel all extraction failures unwrap to.
var ErrMedia = errors.New("media error")

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stderr   string   `json:"stderr,omitempty"`
}

// MediaError is a fatal, stage-aware failure to obtain audio from a video.
type MediaError struct {
	Path       string
	Stage      string
	Message    string
	CommandLog *CommandLog
	Err        error
}

func (e *MediaError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s %s: %s", e.Stage, e.Path, e.Message)
	if e.CommandLog != nil {
		msg = fmt.Sprintf("%s (cmd=%s exit=%d)", msg, e.CommandLog.Command, e.CommandLog.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrMedia) hold for every MediaError.
func (e *MediaError) Is(target error) bool {
	return target == ErrMedia
}

func (e *MediaError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
