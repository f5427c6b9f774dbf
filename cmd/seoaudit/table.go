package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// plainStyle draws tables without borders or separators, two spaces between
// columns.
var plainStyle = func() table.Style {
	s := table.StyleDefault
	s.Name = "plain"
	s.Box.PaddingLeft = ""
	s.Box.PaddingRight = "  "
	s.Options = table.Options{
		DrawBorder:      false,
		SeparateColumns: false,
		SeparateHeader:  false,
		SeparateRows:    false,
	}
	return s
}()

// newTable returns a table that renders to w with the given header.
func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(plainStyle)
	t.AppendHeader(table.Row(header))
	return t
}
