package eventlog

import (
	"context"
	"fmt"
	"iter"
)

// DefaultPageSize bounds how many entries one replay read loads.
const DefaultPageSize = 200

// Replay yields every entry after afterSeq in order, reading lazily in pages.
// Iteration stops at the first error, which is yielded once. Callers resume
// by replaying again from the last seq they processed.
func Replay(ctx context.Context, src Source, afterSeq uint64) iter.Seq2[Entry, error] {
	return ReplayPaged(ctx, src, afterSeq, DefaultPageSize)
}

// ReplayPaged is Replay with an explicit page size.
func ReplayPaged(ctx context.Context, src Source, afterSeq uint64, pageSize int) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if src == nil {
			yield(Entry{}, fmt.Errorf("event source is required"))
			return
		}
		if pageSize <= 0 {
			pageSize = DefaultPageSize
		}
		cursor := afterSeq
		for {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, err)
				return
			}
			page, err := src.ListEvents(ctx, cursor, pageSize)
			if err != nil {
				yield(Entry{}, fmt.Errorf("list events after %d: %w", cursor, err))
				return
			}
			for _, entry := range page {
				if entry.Seq <= cursor {
					yield(Entry{}, fmt.Errorf("event source returned seq %d at or before cursor %d", entry.Seq, cursor))
					return
				}
				cursor = entry.Seq
				if !yield(entry, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
		}
	}
}

// Verify replays the log after afterSeq and checks the hash chain, returning
// the last verified seq and hash.
func Verify(ctx context.Context, src Source, afterSeq uint64, afterHash string) (uint64, string, error) {
	verifier := NewVerifier(afterSeq, afterHash)
	for entry, err := range Replay(ctx, src, afterSeq) {
		if err != nil {
			return 0, "", err
		}
		if err := verifier.Check(entry); err != nil {
			return 0, "", err
		}
	}
	seq, hash := verifier.Last()
	return seq, hash, nil
}
