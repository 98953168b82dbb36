package encoder

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// The transcoder writes progress updates terminated by carriage
// returns, so diagnostic streams are split on both \r and \n.
func scanDiagnosticLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// newDiagnosticScanner wraps a subprocess diagnostic stream.
func newDiagnosticScanner(r *bufio.Scanner) *bufio.Scanner {
	r.Split(scanDiagnosticLines)
	return r
}

type lineKind int

const (
	lineOther lineKind = iota
	// lineSegment carries a segmenter progress payload.
	lineSegment
	// lineError is an encoder error report.
	lineError
	// lineTranscoder is transcoder chatter, informational only.
	lineTranscoder
)

var segmentLinePattern = regexp.MustCompile(`(?i)segmenter:\s*(.*)`)

// classifyLine sorts one diagnostic line into the subprocess protocol's
// categories and extracts the segment payload when present.
func classifyLine(line string) (lineKind, string) {
	if m := segmentLinePattern.FindStringSubmatch(line); m != nil {
		return lineSegment, m[1]
	}

	lower := strings.ToLower(line)
	if strings.Contains(lower, "error") {
		return lineError, ""
	}
	if strings.Contains(lower, "ffmpeg") {
		return lineTranscoder, ""
	}
	return lineOther, ""
}
