package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Spinner is the progress indicator shown while a command waits on the
// server. All methods are safe on a nil receiver, so callers that run
// without a terminal can simply not create one.
type Spinner struct {
	inner   *spinner.Spinner
	message string
}

func NewSpinner(format string, args ...any) *Spinner {
	message := fmt.Sprintf(format, args...)
	s := &Spinner{
		inner: spinner.New(
			spinner.CharSets[14],
			200*time.Millisecond,
			spinner.WithHiddenCursor(true),
			spinner.WithWriter(os.Stderr),
			spinner.WithSuffix(" "+message),
		),
		message: message,
	}
	s.inner.Start()
	return s
}

func (s *Spinner) UpdateMessage(format string, args ...any) {
	if s == nil {
		return
	}
	s.message = fmt.Sprintf(format, args...)
	s.inner.Suffix = " " + s.message
}

// Success stops the spinner with a green check mark. The spinner's current
// message is kept unless an override is given.
func (s *Spinner) Success(message ...string) {
	s.finish(color.HiGreenString("✓"), message)
}

func (s *Spinner) Warn(message ...string) {
	s.finish(color.HiYellowString("!"), message)
}

func (s *Spinner) Fail(message ...string) {
	s.finish(color.HiRedString("✗"), message)
}

func (s *Spinner) finish(mark string, message []string) {
	if s == nil {
		return
	}
	final := s.message
	if len(message) > 0 {
		final = message[0]
	}
	s.inner.FinalMSG = fmt.Sprintf("%s %s\n", mark, final)
	s.inner.Stop()
}
