// Package wal implements a segmented, append-only on-disk queue of JSON records.
package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	segmentPrefix = "segment-"
	segmentSuffix = ".log"
	filePerm      = 0644
	dirPerm       = 0755
	maxLineSize   = 1 << 20
)

// ErrFull is returned by Append when the records would exceed the size cap.
var ErrFull = errors.New("wal: max total size exceeded")

// Log queues records of type T in rotating segment files under one directory.
type Log[T any] struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu             sync.Mutex
	currentSegment *os.File
	currentSize    int64
	totalSize      int64
}

// Open creates the directory if needed and appends to the newest existing
// segment.
func Open[T any](dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*Log[T], error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory %s: %w", dir, err)
	}

	l := &Log[T]{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "wal", "dir", dir),
	}

	total, err := l.calculateTotalSize()
	if err != nil {
		return nil, err
	}
	l.totalSize = total

	if err := l.openLatestSegment(); err != nil {
		return nil, err
	}
	return l, nil
}

// Append writes records as one batch and syncs the segment. Either every
// record is written or none is.
func (l *Log[T]) Append(ctx context.Context, records ...T) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf []byte
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal record for WAL: %w", err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.totalSize+int64(len(buf)) > l.maxTotalSize {
		return fmt.Errorf("%w (%d + %d > %d)", ErrFull, l.totalSize, len(buf), l.maxTotalSize)
	}
	if l.currentSegment == nil {
		if err := l.rotate(); err != nil {
			return err
		}
	}

	n, err := l.currentSegment.Write(buf)
	l.currentSize += int64(n)
	l.totalSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write to WAL segment: %w", err)
	}
	if err := l.currentSegment.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL segment: %w", err)
	}

	if l.currentSize >= l.maxSegmentSize {
		if err := l.rotate(); err != nil {
			l.logger.Error("Failed to rotate WAL segment", "error", err)
		}
	}
	return nil
}

// Drain reads every queued record in write order and passes them to fn in one
// call. The segments are removed only when fn succeeds; appends wait until
// Drain returns. It reports how many records were handed to fn.
func (l *Log[T]) Drain(ctx context.Context, fn func(records []T) error) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentSegment != nil {
		if err := l.currentSegment.Close(); err != nil {
			l.logger.Warn("Failed to close WAL segment before drain", "error", err)
		}
		l.currentSegment = nil
	}

	segments, err := l.getSortedSegments()
	if err != nil {
		return 0, err
	}

	var records []T
	for _, path := range segments {
		if err := ctx.Err(); err != nil {
			return 0, errors.Join(err, l.openLatestSegment())
		}
		batch, err := l.readSegment(path)
		if err != nil {
			return 0, errors.Join(err, l.openLatestSegment())
		}
		records = append(records, batch...)
	}

	if len(records) > 0 {
		if err := fn(records); err != nil {
			return 0, errors.Join(fmt.Errorf("drain handler failed: %w", err), l.openLatestSegment())
		}
	}

	for _, path := range segments {
		if err := os.Remove(path); err != nil {
			l.logger.Error("Failed to remove WAL segment", "path", path, "error", err)
		}
	}
	total, err := l.calculateTotalSize()
	if err != nil {
		return len(records), err
	}
	l.totalSize = total
	if len(records) > 0 {
		l.logger.Info("WAL drained", "records", len(records), "segments", len(segments))
	}
	return len(records), l.openLatestSegment()
}

// Size is the number of bytes currently queued.
func (l *Log[T]) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSize
}

func (l *Log[T]) readSegment(path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", path, err)
	}
	defer file.Close()

	var records []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		var r T
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			// A torn final write leaves a partial line; the rest is still usable.
			l.logger.Warn("Skipping unreadable WAL record", "path", path, "error", err)
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return records, nil
}

func (l *Log[T]) rotate() error {
	if l.currentSegment != nil {
		if err := l.currentSegment.Sync(); err != nil {
			l.logger.Error("Failed to sync WAL segment before rotating", "error", err)
		}
		if err := l.currentSegment.Close(); err != nil {
			l.logger.Error("Failed to close WAL segment before rotating", "error", err)
		}
		l.currentSegment = nil
	}

	// Zero-padded so lexical order is creation order.
	segmentName := fmt.Sprintf("%s%020d%s", segmentPrefix, time.Now().UnixNano(), segmentSuffix)
	path := filepath.Join(l.dir, segmentName)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create new WAL segment %s: %w", path, err)
	}

	l.currentSegment = f
	l.currentSize = 0
	l.logger.Debug("Rotated to new WAL segment", "path", path)
	return nil
}

func (l *Log[T]) openLatestSegment() error {
	segments, err := l.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		return l.rotate()
	}

	latestSegmentPath := segments[len(segments)-1]
	stat, err := os.Stat(latestSegmentPath)
	if err != nil {
		return fmt.Errorf("failed to stat latest segment %s: %w", latestSegmentPath, err)
	}
	if stat.Size() >= l.maxSegmentSize || !endsWithNewline(latestSegmentPath, stat.Size()) {
		return l.rotate()
	}

	f, err := os.OpenFile(latestSegmentPath, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open latest segment %s: %w", latestSegmentPath, err)
	}

	l.currentSegment = f
	l.currentSize = stat.Size()
	return nil
}

// endsWithNewline reports whether the file's last record is complete.
func endsWithNewline(path string, size int64) bool {
	if size == 0 {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return false
	}
	return last[0] == '\n'
}

func (l *Log[T]) getSortedSegments() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAL directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			segments = append(segments, filepath.Join(l.dir, entry.Name()))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (l *Log[T]) calculateTotalSize() (int64, error) {
	var totalSize int64
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read WAL directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			info, err := entry.Info()
			if err != nil {
				return 0, err
			}
			totalSize += info.Size()
		}
	}
	return totalSize, nil
}

// Close closes the current segment.
func (l *Log[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currentSegment != nil {
		err := l.currentSegment.Close()
		l.currentSegment = nil
		return err
	}
	return nil
}
