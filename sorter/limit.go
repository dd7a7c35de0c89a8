package sorter

import "math"

// Limit returns how many of n sorted rows a limit keeps. Limits of zero or
// less keep every row. Percent limits round up and keep at least one row.
func Limit(n int, limit float64, lt LimitType) int {
	if limit <= 0 || n == 0 {
		return n
	}
	var keep int
	if lt == Percent {
		keep = int(math.Ceil(float64(n) * limit / 100))
	} else {
		keep = int(limit)
	}
	return max(1, min(keep, n))
}

// KeyLimit applies the limit of the primary key of keys.
func KeyLimit(n int, keys []Key) int {
	k, ok := Primary(keys)
	if !ok {
		return n
	}
	return Limit(n, k.Limit, k.LimitType)
}
