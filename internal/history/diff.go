package history

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffOp marks a line as kept, added or removed.
type DiffOp int

const (
	DiffEqual DiffOp = iota
	DiffInsert
	DiffDelete
)

// DiffLine is one line of a document diff.
type DiffLine struct {
	Op   DiffOp
	Text string
}

// DiffResult holds a line diff between two snapshots.
type DiffResult struct {
	Lines   []DiffLine
	Added   int
	Removed int
}

// Diff compares the documents of two snapshots line by line.
func Diff(from, to Snapshot) DiffResult {
	return diffText(string(from.Document), string(to.Document))
}

func diffText(a, b string) DiffResult {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var res DiffResult
	for _, d := range diffs {
		op := DiffEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = DiffInsert
		case diffmatchpatch.DiffDelete:
			op = DiffDelete
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			res.Lines = append(res.Lines, DiffLine{Op: op, Text: strings.TrimSuffix(line, "\n")})
			switch op {
			case DiffInsert:
				res.Added++
			case DiffDelete:
				res.Removed++
			}
		}
	}
	return res
}

// Changed returns only the inserted and deleted lines.
func (r DiffResult) Changed() []DiffLine {
	var out []DiffLine
	for _, l := range r.Lines {
		if l.Op != DiffEqual {
			out = append(out, l)
		}
	}
	return out
}
