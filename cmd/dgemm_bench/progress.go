// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// progress displays a progress bar on the terminal, one step per method and size.
type progress struct {
	bar     *progressbar.ProgressBar
	termenv *termenv.Output
}

func newProgress(numSteps int) *progress {
	p := &progress{termenv: termenv.NewOutput(os.Stdout)}
	p.termenv.HideCursor()
	p.bar = progressbar.NewOptions(numSteps,
		progressbar.OptionSetDescription("benchmarking"),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(p.termenv.Profile != termenv.Ascii),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return p
}

// Describe the step being run.
func (p *progress) Describe(size int, methodName string) {
	flops := humanize.SIWithDigits(2*float64(size)*float64(size)*float64(size), 1, "flop")
	p.bar.Describe(fmt.Sprintf("%4dx%-4d %-8s [bold]%s[reset]", size, size, flops, methodName))
}

// Add one finished step.
func (p *progress) Add() {
	_ = p.bar.Add(1)
}

// Finish clears the progress bar and restores the cursor.
func (p *progress) Finish() {
	_ = p.bar.Finish()
	p.termenv.ShowCursor()
	fmt.Println()
}
