package cmd

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"
)

type palette struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *palette {
	return &palette{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

func isTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// spinnerIndicator shows a spinner on stderr, or nothing when stderr is not a terminal.
func spinnerIndicator() func(msg string) func() {
	if !isTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return func(msg string) func() {
		spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Suffix = " " + msg
		spin.Start()
		return spin.Stop
	}
}
