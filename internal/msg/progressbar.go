package msg

import (
	"fmt"
	"io"
	"strings"
)

// ProgressBar renders a step's percentage. The qmake step reports progress
// per state, not per byte, so the bar only moves on Set.
type ProgressBar struct {
	Label   string
	Indent  int
	W       io.Writer
	percent int
	width   int
}

func NewProgressBar(label string, indent int, w io.Writer) *ProgressBar {
	return &ProgressBar{
		Label:  label,
		Indent: indent,
		W:      w,
		width:  40,
	}
}

// Set moves the bar to percent (clamped to 0..100) and redraws it.
func (pb *ProgressBar) Set(percent int) {
	pb.percent = min(max(percent, 0), 100)
	pb.print()
}

func (pb *ProgressBar) Percent() int { return pb.percent }

func (pb *ProgressBar) print() {
	filled := min(pb.percent*pb.width/100, pb.width)
	bar := strings.Repeat("█", filled) + strings.Repeat("-", pb.width-filled)
	fmt.Fprintf(pb.W, "\r%s%s %3d%% [%s]",
		strings.Repeat(" ", pb.Indent),
		pb.Label,
		pb.percent,
		bar,
	)
}

// Finish draws the bar at 100% and ends its line.
func (pb *ProgressBar) Finish() {
	pb.Set(100)
	fmt.Fprintln(pb.W)
}
