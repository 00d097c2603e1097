// Package lyrics provides LRC lyrics parsing and time-indexed lookup.
package lyrics

import (
	"bufio"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// mergeWindow is the maximum gap between two adjacent entries for the
// second one to be folded into the first as its translation. Bilingual
// LRC files commonly tag the translated line a few hundredths of a
// second after the original.
const mergeWindow = 100 * time.Millisecond

// Line represents a single timestamped lyric line.
type Line struct {
	Time        time.Duration
	Text        string
	Translation string // empty when the line has no translation
}

// Lyrics holds parsed lyric lines sorted by time.
type Lyrics struct {
	Lines []Line
}

// Matches timestamps like [00:12], [00:12.34], [00:12.345] or [00:12:34].
// Minute and second groups must be exactly two digits; anything else is
// treated as plain text rather than a tag.
var timestampRe = regexp.MustCompile(`\[(\d{2}):(\d{2})(?:[.:](\d{2,3}))?\]`)

// Parse parses LRC format lyrics from a reader.
//
// A physical line may carry several timestamps; each produces one Line
// sharing the same text. Lines without any timestamp (metadata, credits)
// are skipped, as are lines whose text is empty once tags are stripped.
// An empty result is valid and means the file had no timed lines.
func Parse(r io.Reader) (*Lyrics, error) {
	lyrics := &Lyrics{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		matches := timestampRe.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			continue
		}

		text := strings.TrimSpace(timestampRe.ReplaceAllString(line, ""))
		if text == "" {
			// Tag-only line, e.g. [00:00] used as a section marker.
			continue
		}

		for _, match := range matches {
			lyrics.Lines = append(lyrics.Lines, Line{
				Time: tagTime(match),
				Text: text,
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(lyrics.Lines, func(i, j int) bool {
		return lyrics.Lines[i].Time < lyrics.Lines[j].Time
	})
	lyrics.Lines = mergeTranslations(lyrics.Lines)

	return lyrics, nil
}

// tagTime converts a timestamp regex match into a Duration.
func tagTime(match []string) time.Duration {
	minutes, _ := strconv.Atoi(match[1])
	seconds, _ := strconv.Atoi(match[2])

	var millis int
	if match[3] != "" {
		millis, _ = strconv.Atoi(match[3])
		if len(match[3]) == 2 {
			millis *= 10 // centiseconds
		}
	}

	return time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
}

// mergeTranslations folds pairs of adjacent lines closer than mergeWindow
// into a single line with a translation. The scan is forward-only: an
// entry consumed as a translation is never itself given one.
func mergeTranslations(lines []Line) []Line {
	if len(lines) < 2 {
		return lines
	}

	merged := make([]Line, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		cur := lines[i]
		if i+1 < len(lines) && lines[i+1].Time-cur.Time < mergeWindow {
			cur.Translation = lines[i+1].Text
			i++
		}
		merged = append(merged, cur)
	}
	return merged
}

// LineAt returns the index of the last line whose time is at or before
// pos, or -1 if pos precedes the first line.
func (l *Lyrics) LineAt(pos time.Duration) int {
	return sort.Search(len(l.Lines), func(i int) bool {
		return l.Lines[i].Time > pos
	}) - 1
}

// At returns the line at index i, or nil when i is out of range.
func (l *Lyrics) At(i int) *Line {
	if i < 0 || i >= len(l.Lines) {
		return nil
	}
	return &l.Lines[i]
}
