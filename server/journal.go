package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/server/log"
	"github.com/samber/lo"
)

const journalFile = "results.jsonl"

// journal appends one JSON document per invocation to a plain text file and
// rotates it away once it grows past maxSize. Rotated files are compressed in
// the background; the live file stays uncompressed so it can be tailed.
type journal struct {
	dir     string
	maxSize int64

	mutex sync.Mutex
	file  *os.File
	size  int64
}

func openJournal(dir string, maxSize int64) (*journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	file, err := os.OpenFile(path.Join(dir, journalFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat journal: %w", err)
	}

	return &journal{dir: dir, maxSize: maxSize, file: file, size: info.Size()}, nil
}

func (j *journal) Append(result *fleet.ReconciliationResult) error {
	line := append(lo.Must(json.Marshal(result)), '\n')

	j.mutex.Lock()
	defer j.mutex.Unlock()

	if j.size > 0 && j.size+int64(len(line)) > j.maxSize {
		if err := j.rotate(); err != nil {
			// An oversized journal beats a lost result
			log.Error("Failed to rotate journal", "error", err)
		}
	}

	n, err := j.file.Write(line)
	j.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	return nil
}

func (j *journal) Close() error {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.file.Close()
}

func (j *journal) rotate() error {
	rotated := path.Join(j.dir, fmt.Sprintf("results-%s.jsonl", time.Now().UTC().Format("20060102-150405.000000000")))
	if err := os.Rename(path.Join(j.dir, journalFile), rotated); err != nil {
		return fmt.Errorf("failed to rename journal: %w", err)
	}
	if err := j.file.Close(); err != nil {
		log.Warn("Failed to close rotated journal", "error", err)
	}

	file, err := os.OpenFile(path.Join(j.dir, journalFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to reopen journal: %w", err)
	}
	j.file = file
	j.size = 0

	go compressJournal(rotated)
	return nil
}

// compressJournal replaces a rotated journal with its zstd-compressed copy.
// On failure the uncompressed file stays in place.
func compressJournal(rotated string) {
	source, err := os.Open(rotated)
	if err != nil {
		log.Error("Failed to open rotated journal", "file", rotated, "error", err)
		return
	}
	defer source.Close()

	target, err := os.Create(rotated + ".zst")
	if err != nil {
		log.Error("Failed to create compressed journal", "file", rotated, "error", err)
		return
	}
	defer target.Close()

	zw := lo.Must(zstd.NewWriter(target))
	_, err = io.Copy(zw, source)
	if closeErr := zw.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(rotated + ".zst")
		log.Error("Failed to compress rotated journal", "file", rotated, "error", err)
		return
	}

	if err = os.Remove(rotated); err != nil {
		log.Warn("Failed to remove rotated journal", "file", rotated, "error", err)
		return
	}
	log.Debug("Compressed rotated journal", "file", rotated+".zst")
}
