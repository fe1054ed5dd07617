// Package decklist reads card names from decklist text.
package decklist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/menta2k/cardmask/pkg/catalog"
)

// leadingCount matches a quantity prefix such as "4 " or "12  "
var leadingCount = regexp.MustCompile(`^[0-9]+ +`)

// Parse returns the card names of a decklist in order of first appearance.
// Quantity prefixes are stripped, blank lines are skipped and names that
// normalize to the same text are kept once.
func Parse(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if name := CleanLine(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read decklist: %w", err)
	}
	return Dedupe(names), nil
}

// Dedupe keeps the first of each group of names that normalize to the same
// text. Names are not cleaned again.
func Dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		key := catalog.NormalizeName(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ParseFile parses the decklist at path
func ParseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open decklist: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// CleanLine strips trailing whitespace and a leading quantity
func CleanLine(line string) string {
	line = strings.TrimRight(line, " \t\r\n")
	line = leadingCount.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}
