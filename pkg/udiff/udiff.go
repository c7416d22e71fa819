// Package udiff turns a unified-diff (.diff/.patch) file into per-file line
// sets. covfilter never reads a diff file itself; it only ever sees the map
// this package produces.
package udiff

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/KevinAo22/OpenCppCoverage/pkg/logflags"
)

// FileLines maps a path found in the diff to the set of line numbers added
// by that diff, expressed as the post-patch line numbers (the numbers a
// debugger's source-line reporting would use once the patch is applied).
type FileLines map[string][]int

var hunkHeaderRe = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// ParseFile reads and parses the unified-diff file at path.
func ParseFile(path string) (FileLines, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse scans r for +++ file headers and @@ hunk headers, recording the
// post-patch line number of every added ('+') line under the most recently
// seen +++ path. Context and removed lines advance/hold the running line
// counter but are never recorded.
func Parse(r io.Reader) (FileLines, error) {
	result := FileLines{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var currentFile string
	var nextLine int
	inHunk := false

	logger := logflags.UnifiedDiffLogger()

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "+++ "):
			inHunk = false
			currentFile = parseDiffPath(line[len("+++ "):])
		case strings.HasPrefix(line, "--- "):
			inHunk = false
		case strings.HasPrefix(line, "@@"):
			m := hunkHeaderRe.FindStringSubmatch(line)
			if m == nil {
				inHunk = false
				continue
			}
			start, err := strconv.Atoi(m[1])
			if err != nil {
				inHunk = false
				continue
			}
			nextLine = start
			inHunk = true
		case inHunk && strings.HasPrefix(line, "+"):
			if currentFile != "" {
				result[currentFile] = append(result[currentFile], nextLine)
			}
			nextLine++
		case inHunk && strings.HasPrefix(line, "-"):
			// removed line: does not exist in the post-patch file.
		case inHunk && (line == "" || strings.HasPrefix(line, " ")):
			nextLine++
		default:
			inHunk = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Debugf("parsed unified diff: %d file(s)", len(result))
	return result, nil
}

// parseDiffPath strips the a/ or b/ prefix git-style diffs use and any
// trailing tab-separated timestamp.
func parseDiffPath(raw string) string {
	if idx := strings.IndexByte(raw, '\t'); idx >= 0 {
		raw = raw[:idx]
	}
	raw = strings.TrimSpace(raw)
	if raw == "/dev/null" {
		return ""
	}
	if len(raw) > 2 && (raw[:2] == "a/" || raw[:2] == "b/") {
		raw = raw[2:]
	}
	return raw
}
