package index

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// cacheVersion is bumped whenever cacheEntry's shape changes, so a cache
// written by an older build is discarded rather than misread.
const cacheVersion = 1

// cacheEntry is one chunk's persisted embedding plus the fields needed
// to detect staleness without re-reading the source file.
type cacheEntry struct {
	ChunkID     string
	Path        string
	StartLine   int
	EndLine     int
	ContentHash string
	Embedding   []float32
	ModTime     int64
}

type cacheFile struct {
	Version int
	Entries []cacheEntry
}

// SaveCache writes entries to path, zstd-compressed via
// klauspost/compress (the same compression library the task-snapshot
// store uses, so both on-disk artifacts share one dependency).
func SaveCache(path string, entries []cacheEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cacheFile{Version: cacheVersion, Entries: entries}); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	defer encoder.Close()

	compressed := encoder.EncodeAll(buf.Bytes(), nil)
	return os.WriteFile(path, compressed, 0o644)
}

// LoadCache reads and decompresses a cache previously written by
// SaveCache. A missing file or version mismatch returns
// (nil, core.CacheInvalidError) via the caller's own classification —
// LoadCache itself just reports ok=false for "nothing usable here."
func LoadCache(path string) (entries []cacheEntry, ok bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, false, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, false, nil // corrupt cache: treat as absent, rebuild
	}

	var cf cacheFile
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&cf); err != nil {
		return nil, false, nil
	}
	if cf.Version != cacheVersion {
		return nil, false, nil
	}
	return cf.Entries, true, nil
}
