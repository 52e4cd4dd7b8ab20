package notes

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile reads notes from path. The format follows the extension:
// .jsonl (one note per line), .json (array), .yaml/.yml (list).
func ParseFile(path string) ([]Note, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open notes: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(f)
	case ".yaml", ".yml":
		return ParseYAML(f)
	default:
		return ParseJSONL(f)
	}
}

// ParseJSONL reads one note per line. Blank and malformed lines are skipped.
func ParseJSONL(r io.Reader) ([]Note, error) {
	var out []Note
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB line buffer

	for scanner.Scan() {
		n, ok := ParseLine(scanner.Bytes())
		if ok {
			out = append(out, n)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan notes: %w", err)
	}
	return out, nil
}

// ParseLine decodes a single JSONL line. It reports false for blank or
// malformed input.
func ParseLine(line []byte) (Note, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Note{}, false
	}
	var n Note
	if err := json.Unmarshal(line, &n); err != nil {
		return Note{}, false
	}
	return n, true
}

// ParseJSON reads a JSON array of notes, or a single note object.
func ParseJSON(r io.Reader) ([]Note, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read notes: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var n Note
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("decode note: %w", err)
		}
		return []Note{n}, nil
	}
	var out []Note
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	return out, nil
}

// ParseYAML reads a YAML list of notes.
func ParseYAML(r io.Reader) ([]Note, error) {
	var out []Note
	if err := yaml.NewDecoder(r).Decode(&out); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml notes: %w", err)
	}
	return out, nil
}

// EarliestTimestamp returns the smallest non-zero Timestamp, or 0 when no
// note carries one. Offline files use it as the implied session start.
func EarliestTimestamp(ns []Note) int64 {
	var earliest int64
	for _, n := range ns {
		if n.Timestamp <= 0 {
			continue
		}
		if earliest == 0 || n.Timestamp < earliest {
			earliest = n.Timestamp
		}
	}
	return earliest
}
