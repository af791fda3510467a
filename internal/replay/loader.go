package replay

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"tradegate/internal/domain"
	"tradegate/internal/feed"
)

const maxLineBytes = 1 << 20

// ReadSnapshots parses newline-delimited snapshot objects in the feed wire
// format. Blank lines and lines starting with # are ignored.
func ReadSnapshots(r io.Reader) ([]*domain.IndicatorSnapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []*domain.IndicatorSnapshot
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		snap, err := feed.DecodeSnapshot(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, snap)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoSnapshots
	}
	return out, nil
}
