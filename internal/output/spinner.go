package output

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// spinnerCharSet is the braille dot animation.
const spinnerCharSet = 14

// Spinner starts an animated spinner with msg on w and returns a stop
// function. On non-terminal writers only the message is printed once.
func Spinner(w io.Writer, msg string) func() {
	if !IsTerminal(w) {
		_, _ = fmt.Fprintln(w, msg)
		return func() {}
	}

	s := spinner.New(spinner.CharSets[spinnerCharSet], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + msg
	s.Start()
	return func() {
		s.Stop()
		_, _ = fmt.Fprintln(w)
	}
}
