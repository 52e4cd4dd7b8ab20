package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/lazypower/cadence/internal/notes"
)

// follower reads the notes appended to a JSONL file since the last call.
// A trailing line without a newline is held back until it is completed.
type follower struct {
	path    string
	offset  int64
	partial []byte
}

func newFollower(path string) *follower {
	return &follower{path: path}
}

// skipToEnd positions the follower after the file's current content.
func (f *follower) skipToEnd() error {
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	f.offset = info.Size()
	return nil
}

// readNew returns the complete notes written since the previous call. A
// file that shrank is treated as rewritten and read from the start.
func (f *follower) readNew() ([]notes.Note, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < f.offset {
		f.offset = 0
		f.partial = nil
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	f.offset += int64(len(data))

	buf := append(f.partial, data...)
	last := bytes.LastIndexByte(buf, '\n')
	if last < 0 {
		f.partial = buf
		return nil, nil
	}
	f.partial = append([]byte(nil), buf[last+1:]...)

	var out []notes.Note
	for _, line := range bytes.Split(buf[:last], []byte("\n")) {
		if n, ok := notes.ParseLine(line); ok {
			out = append(out, n)
		}
	}
	return out, nil
}
