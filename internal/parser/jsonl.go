package parser

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhaobenny/ccsessions/internal/model"
)

// ErrProjectsDirNotFound is returned when the base projects directory is missing.
var ErrProjectsDirNotFound = errors.New("projects directory not found")

const (
	initialBufSize = 64 * 1024
	maxLineSize    = 32 * 1024 * 1024
)

// FileEntry is a discovered transcript file.
type FileEntry struct {
	model.FileInfo
	ModTime time.Time
}

// FileStats counts what happened while reading one file.
type FileStats struct {
	Lines        int
	SkippedLines int
}

// ScanStats aggregates FileStats over a scan.
type ScanStats struct {
	Files        int
	SkippedFiles int
	Lines        int
	SkippedLines int
}

func (s *ScanStats) add(fst FileStats) {
	s.Files++
	s.Lines += fst.Lines
	s.SkippedLines += fst.SkippedLines
}

// ReadFile calls fn for every parseable line of a JSONL file. Blank and
// malformed lines are skipped and counted, as are lines longer than
// maxLineSize. Line numbers are 1-based. When a read error ends the file
// early, the lines before it have already been delivered.
func ReadFile(path string, fn func(lineNumber int, rec RawRecord)) (FileStats, error) {
	var stats FileStats

	file, err := os.Open(path)
	if err != nil {
		return stats, err
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, initialBufSize)
	var buf []byte

	lineNumber := 0
	for {
		line, tooLong, err := readLine(reader, buf[:0])
		buf = line
		if err != nil && !errors.Is(err, io.EOF) {
			return stats, err
		}
		if errors.Is(err, io.EOF) && len(line) == 0 && !tooLong {
			return stats, nil
		}
		lineNumber++

		line = bytes.TrimRight(line, "\r\n")
		switch {
		case tooLong:
			stats.Lines++
			stats.SkippedLines++
		case len(line) > 0:
			stats.Lines++
			if rec, ok := ParseLine(line); ok {
				fn(lineNumber, rec)
			} else {
				stats.SkippedLines++
			}
		}

		if errors.Is(err, io.EOF) {
			return stats, nil
		}
	}
}

// readLine appends the next line, terminator included, to buf. A line longer
// than maxLineSize is consumed to its end and reported as tooLong with an
// empty buf.
func readLine(r *bufio.Reader, buf []byte) ([]byte, bool, error) {
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineSize+1 {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return buf, tooLong, err
	}
}

// ParseFile parses a transcript into events with intra-file sequence numbers.
func ParseFile(info model.FileInfo) ([]model.Event, FileStats, error) {
	var events []model.Event
	stats, err := ReadFile(info.Path, func(lineNumber int, rec RawRecord) {
		if ev, ok := Normalize(info, rec, lineNumber); ok {
			events = append(events, ev)
		}
	})
	AssignSequence(events)
	return events, stats, err
}

// Scanner discovers and reads transcripts below a projects directory.
type Scanner struct {
	root    string
	workers int
	logger  *zap.Logger
}

// NewScanner creates a scanner. workers bounds parallel file reads.
func NewScanner(root string, workers int, logger *zap.Logger) *Scanner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{root: root, workers: workers, logger: logger}
}

// Root returns the projects directory.
func (s *Scanner) Root() string {
	return s.root
}

// Files lists all .jsonl files below the projects directory in lexical order.
// Unreadable subdirectories are skipped.
func (s *Scanner) Files(ctx context.Context) ([]FileEntry, error) {
	info, err := os.Stat(s.root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrProjectsDirNotFound, s.root)
	}

	var files []FileEntry
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() && path != s.root {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || filepath.Ext(path) != ".jsonl" {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			s.logger.Warn("skipping file without stat", zap.String("path", path), zap.Error(err))
			return nil
		}
		files = append(files, FileEntry{
			FileInfo: ClassifyPath(s.root, path),
			ModTime:  fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Result is the output of a scan.
type Result struct {
	Events   []model.Event
	ModTimes map[string]time.Time
	Stats    ScanStats
}

// Scan parses every file accepted by keep. A nil keep accepts all files.
func (s *Scanner) Scan(ctx context.Context, keep func(model.FileInfo) bool) (*Result, error) {
	files, err := s.Files(ctx)
	if err != nil {
		return nil, err
	}
	files = selectFiles(files, keep)

	parsed, stats, err := readAll(ctx, s, files, func(f FileEntry) ([]model.Event, FileStats, error) {
		return ParseFile(f.FileInfo)
	})
	if err != nil {
		return nil, err
	}

	res := &Result{ModTimes: make(map[string]time.Time, len(files)), Stats: stats}
	for i, events := range parsed {
		res.Events = append(res.Events, events...)
		res.ModTimes[files[i].Path] = files[i].ModTime
	}
	return res, nil
}

// FileRecords holds every raw record of one file, in line order.
type FileRecords struct {
	Entry   FileEntry
	Records []RawRecord
}

// ScanRecords reads raw records without normalizing them.
func (s *Scanner) ScanRecords(ctx context.Context, keep func(model.FileInfo) bool) ([]FileRecords, ScanStats, error) {
	files, err := s.Files(ctx)
	if err != nil {
		return nil, ScanStats{}, err
	}
	files = selectFiles(files, keep)

	parsed, stats, err := readAll(ctx, s, files, func(f FileEntry) ([]RawRecord, FileStats, error) {
		var recs []RawRecord
		st, err := ReadFile(f.Path, func(_ int, rec RawRecord) {
			recs = append(recs, rec)
		})
		return recs, st, err
	})
	if err != nil {
		return nil, stats, err
	}

	out := make([]FileRecords, 0, len(files))
	for i, recs := range parsed {
		out = append(out, FileRecords{Entry: files[i], Records: recs})
	}
	return out, stats, nil
}

func selectFiles(files []FileEntry, keep func(model.FileInfo) bool) []FileEntry {
	if keep == nil {
		return files
	}
	kept := files[:0:0]
	for _, f := range files {
		if keep(f.FileInfo) {
			kept = append(kept, f)
		}
	}
	return kept
}

// readAll reads files in parallel and returns per-file results in input
// order. A file whose read fails part way keeps what was read before the
// failure and is counted as skipped; only context cancellation aborts the
// scan.
func readAll[T any](ctx context.Context, s *Scanner, files []FileEntry, read func(FileEntry) (T, FileStats, error)) ([]T, ScanStats, error) {
	results := make([]T, len(files))
	fileStats := make([]FileStats, len(files))
	failed := make([]bool, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, st, err := read(f)
			if err != nil {
				s.logger.Warn("stopped reading file", zap.String("path", f.Path), zap.Error(err))
				failed[i] = true
			}
			results[i] = res
			fileStats[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ScanStats{}, err
	}

	var stats ScanStats
	for i := range files {
		if failed[i] {
			stats.SkippedFiles++
			stats.Lines += fileStats[i].Lines
			stats.SkippedLines += fileStats[i].SkippedLines
			continue
		}
		stats.add(fileStats[i])
	}
	if stats.SkippedLines > 0 {
		s.logger.Debug("skipped malformed lines", zap.Int("lines", stats.SkippedLines), zap.Int("files", stats.Files))
	}
	return results, stats, nil
}
