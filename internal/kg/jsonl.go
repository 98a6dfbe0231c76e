package kg

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSONL writes one JSON object per line. Non-ASCII text is written as
// is.
func WriteJSONL(w io.Writer, triplets []Triplet) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, t := range triplets {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("write triplet %d: %w", i, err)
		}
	}
	return nil
}

// ReadJSONL reads triplets written by WriteJSONL. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Triplet, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []Triplet
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var t Triplet
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return out, nil
}
