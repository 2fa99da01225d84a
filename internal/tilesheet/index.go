package tilesheet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var indexLine = regexp.MustCompile(`^(\d+) (\d+) (.+)$`)

// SheetFileName is the object name of the sheet image for one tile size.
func SheetFileName(name string, size int) string {
	return fmt.Sprintf("Tilesheet %s %d.png", name, size)
}

// IndexFileName is the object name of the tilesheet index.
func IndexFileName(name string) string {
	return fmt.Sprintf("Tilesheet %s.txt", name)
}

// ParseIndex reads "x y name" lines. Lines that do not have that shape are
// skipped. Lines have no length limit.
func ParseIndex(r io.Reader) ([]Entry, error) {
	var entries []Entry
	br := bufio.NewReader(r)
	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("read index: %w", readErr)
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if m := indexLine.FindStringSubmatch(line); m != nil {
			x, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("parse index x %q: %w", m[1], err)
			}
			y, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, fmt.Errorf("parse index y %q: %w", m[2], err)
			}
			entries = append(entries, Entry{Name: m[3], Position: Position{X: x, Y: y}})
		}
		if readErr != nil {
			return entries, nil
		}
	}
}

// FormatIndex writes one "x y name" line per entry.
func FormatIndex(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%d %d %s\n", e.X, e.Y, e.Name); err != nil {
			return err
		}
	}
	return bw.Flush()
}
