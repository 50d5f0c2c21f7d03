// Package tail follows an append-only log file across rotations.
//
// DESIGN: poll-based (no inotify), which works on every filesystem
// the proxy can log to, including bind mounts. Rotation is detected
// by file identity (os.SameFile) and by the file shrinking below the
// read offset; after a rotation the new file is read from the start.
// Partial lines (no trailing newline yet) are buffered until the
// writer completes them.
package tail

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultOpenRetry    = 2 * time.Second
)

// Option configures a Follower.
type Option func(*Follower)

// WithPollInterval sets how often the follower checks for new data.
func WithPollInterval(d time.Duration) Option {
	return func(f *Follower) { f.pollInterval = d }
}

// WithOpenRetry sets how often the follower retries while waiting for
// the file to exist.
func WithOpenRetry(d time.Duration) Option {
	return func(f *Follower) { f.openRetry = d }
}

// FromStart makes the first open read from offset 0 instead of
// seeking to the end. Rotated files are always read from the start.
func FromStart() Option {
	return func(f *Follower) { f.fromStart = true }
}

// Follower tails a single log file.
type Follower struct {
	path         string
	pollInterval time.Duration
	openRetry    time.Duration
	fromStart    bool
	lines        chan string
}

// NewFollower creates a Follower for path. By default the first open
// seeks to the end so historical traffic is not replayed on restart.
func NewFollower(path string, opts ...Option) *Follower {
	f := &Follower{
		path:         path,
		pollInterval: defaultPollInterval,
		openRetry:    defaultOpenRetry,
		lines:        make(chan string, 64),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Lines returns the channel of complete lines. It is closed when Run
// returns.
func (f *Follower) Lines() <-chan string { return f.lines }

// Run follows the file until ctx is cancelled. It only ever returns
// ctx.Err(); all I/O failures are retried.
func (f *Follower) Run(ctx context.Context) error {
	defer close(f.lines)

	first := true
	for {
		file, info, err := f.waitOpen(ctx)
		if err != nil {
			return err
		}
		if first && !f.fromStart {
			if _, err := file.Seek(0, io.SeekEnd); err != nil {
				log.Warn().Err(err).Str("path", f.path).Msg("tail: seek to end failed, reading from start")
			}
		}
		first = false

		err = f.follow(ctx, file, info)
		file.Close()
		if err != nil {
			return err
		}
		// Rotated or truncated: reopen and read the new file in full.
		log.Info().Str("path", f.path).Msg("tail: log rotated, reopening")
	}
}

// waitOpen polls until the file exists, as the proxy may not have
// written anything yet at watcher startup.
func (f *Follower) waitOpen(ctx context.Context) (*os.File, os.FileInfo, error) {
	for {
		file, err := os.Open(f.path)
		if err == nil {
			info, err := file.Stat()
			if err == nil {
				return file, info, nil
			}
			file.Close()
			log.Warn().Err(err).Str("path", f.path).Msg("tail: stat failed, retrying")
		} else if os.IsNotExist(err) {
			log.Debug().Str("path", f.path).Msg("tail: waiting for log file")
		} else {
			log.Warn().Err(err).Str("path", f.path).Msg("tail: open failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(f.openRetry):
		}
	}
}

// follow reads appended lines until ctx is cancelled (returns
// ctx.Err()) or the file is rotated away (returns nil).
func (f *Follower) follow(ctx context.Context, file *os.File, opened os.FileInfo) error {
	reader := bufio.NewReader(file)
	var partial []byte
	var offset int64

	if pos, err := file.Seek(0, io.SeekCurrent); err == nil {
		offset = pos
	}

	for {
		chunk, err := reader.ReadBytes('\n')
		if len(chunk) > 0 {
			offset += int64(len(chunk))
			partial = append(partial, chunk...)
		}

		if err == nil {
			line := strings.TrimRight(string(partial), "\r\n")
			partial = partial[:0]
			if line != "" {
				select {
				case f.lines <- line:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}

		if err != io.EOF {
			log.Warn().Err(err).Str("path", f.path).Msg("tail: read error, retrying")
		} else if rotated := f.checkRotation(opened, offset); rotated {
			// Any buffered partial line belongs to the old file and
			// will never be completed.
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.pollInterval):
		}
	}
}

// checkRotation reports whether the path now refers to a different
// file, or the current file shrank below our read offset.
func (f *Follower) checkRotation(opened os.FileInfo, offset int64) bool {
	current, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return true
		}
		log.Warn().Err(err).Str("path", f.path).Msg("tail: stat failed")
		return false
	}
	if !os.SameFile(opened, current) {
		return true
	}
	return current.Size() < offset
}
