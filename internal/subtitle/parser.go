// Package subtitle parses SRT-style timed subtitle files into typed segments.
//
// A subtitle file is a UTF-8 byte stream of blocks separated by one or more
// blank lines. Each block carries an integer cue ID, a timing line of the form
// "HH:MM:SS,mmm --> HH:MM:SS,mmm", and one or more text lines that are joined
// with a single space. The parser never reorders or deduplicates segments;
// malformed blocks are skipped with a warning.
package subtitle

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

// ErrParse is wrapped by all timing/ID parse failures so callers can
// distinguish malformed content from I/O errors.
var ErrParse = errors.New("subtitle: parse error")

// ParseFile reads the subtitle file at path and parses it into segments.
// A missing file is reported via the wrapped os.ErrNotExist.
func ParseFile(path string) ([]types.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("subtitle: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw subtitle bytes into segments. An empty input yields zero
// segments and no error. Blocks with fewer than three non-empty lines are
// skipped with a warning rather than aborting the whole file.
func Parse(data []byte) ([]types.Segment, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := splitBlocks(text)

	segments := make([]types.Segment, 0, len(blocks))
	for i, block := range blocks {
		seg, err := parseBlock(block)
		if err != nil {
			if errors.Is(err, errShortBlock) {
				slog.Warn("skipping malformed subtitle block", "block", i+1, "lines", len(block))
				continue
			}
			return nil, fmt.Errorf("subtitle: block %d: %w", i+1, err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// errShortBlock marks a block with fewer than three non-empty lines.
var errShortBlock = errors.New("block has fewer than 3 lines")

// splitBlocks splits the file into blocks of non-empty lines, treating any
// run of one or more blank lines as a separator.
func splitBlocks(text string) [][]string {
	var blocks [][]string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// parseBlock converts one block of lines into a Segment.
func parseBlock(lines []string) (types.Segment, error) {
	if len(lines) < 3 {
		return types.Segment{}, errShortBlock
	}

	id, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return types.Segment{}, fmt.Errorf("%w: invalid cue id %q", ErrParse, lines[0])
	}

	startTime, endTime, startMs, endMs, err := parseTiming(lines[1])
	if err != nil {
		return types.Segment{}, err
	}

	joined := strings.Join(trimAll(lines[2:]), " ")

	return types.Segment{
		ID:          id,
		StartTime:   startTime,
		EndTime:     endTime,
		StartMs:     startMs,
		EndMs:       endMs,
		DurationSec: float64(endMs-startMs) / 1000,
		Text:        joined,
		TextLength:  utf8.RuneCountInString(joined),
	}, nil
}

// parseTiming parses a "HH:MM:SS,mmm --> HH:MM:SS,mmm" line.
func parseTiming(line string) (start, end string, startMs, endMs int, err error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return "", "", 0, 0, fmt.Errorf("%w: invalid timing line %q", ErrParse, line)
	}
	start = strings.TrimSpace(parts[0])
	end = strings.TrimSpace(parts[1])

	startMs, err = timestampToMs(start)
	if err != nil {
		return "", "", 0, 0, err
	}
	endMs, err = timestampToMs(end)
	if err != nil {
		return "", "", 0, 0, err
	}
	return start, end, startMs, endMs, nil
}

// timestampToMs converts "HH:MM:SS,mmm" to milliseconds.
func timestampToMs(ts string) (int, error) {
	main, msPart, ok := strings.Cut(ts, ",")
	if !ok {
		return 0, fmt.Errorf("%w: invalid timestamp %q", ErrParse, ts)
	}
	hms := strings.Split(main, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("%w: invalid timestamp %q", ErrParse, ts)
	}
	h, err1 := strconv.Atoi(hms[0])
	m, err2 := strconv.Atoi(hms[1])
	s, err3 := strconv.Atoi(hms[2])
	ms, err4 := strconv.Atoi(msPart)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return 0, fmt.Errorf("%w: invalid timestamp %q", ErrParse, ts)
	}
	return ((h*60+m)*60+s)*1000 + ms, nil
}

func trimAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}
	return out
}
