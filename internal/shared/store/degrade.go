package store

import "context"

// Transform rewrites a serialized value into a smaller one. It returns the
// rewritten bytes and whether anything changed; returning changed=false
// skips the retry for that rung.
type Transform func(value []byte) (smaller []byte, changed bool)

// FallbackResult records which rungs of the degradation ladder were used so
// callers can surface a reduced-functionality warning to the user.
type FallbackResult struct {
	TrimmedLargeFields bool
	TruncatedHistory   bool
	Abandoned          bool
}

// Degraded reports whether the write needed any fallback at all.
func (r FallbackResult) Degraded() bool {
	return r.TrimmedLargeFields || r.TruncatedHistory || r.Abandoned
}

// PutWithFallback writes value under key, walking the three-step ladder on
// ErrCapacityExceeded:
//
//  1. retry after trimLarge strips large optional fields,
//  2. retry after truncate drops the oldest history entries,
//  3. abandon the write and leave prior state untouched.
//
// Either transform may be nil to skip its rung. Non-capacity errors abort
// immediately. On abandonment the returned error is ErrCapacityExceeded and
// Abandoned is set; every other outcome returns a nil error.
func PutWithFallback(ctx context.Context, s Store, key string, value []byte, trimLarge, truncate Transform) (FallbackResult, error) {
	var result FallbackResult

	err := s.Put(ctx, key, value)
	if err == nil || err != ErrCapacityExceeded {
		return result, err
	}

	if trimLarge != nil {
		if smaller, changed := trimLarge(value); changed {
			result.TrimmedLargeFields = true
			value = smaller
			err = s.Put(ctx, key, value)
			if err == nil || err != ErrCapacityExceeded {
				return result, err
			}
		}
	}

	if truncate != nil {
		if smaller, changed := truncate(value); changed {
			result.TruncatedHistory = true
			value = smaller
			err = s.Put(ctx, key, value)
			if err == nil || err != ErrCapacityExceeded {
				return result, err
			}
		}
	}

	result.Abandoned = true
	return result, ErrCapacityExceeded
}
