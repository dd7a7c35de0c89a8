package sorter

import (
	"math"

	"github.com/vegasq/cubecat/progress"
)

// radixSort stably reorders perm by keys (keys[i] belongs to perm[i]),
// least significant digit first. Only the low width bits of the keys are
// read. Byte-wide keys use one 8-bit pass, wider keys 16-bit passes.
//
// Cancellation is polled before every pass. A cancelled sort leaves perm a
// permutation of its input.
func radixSort(perm []uint32, keys []uint64, width uint, rep *progress.Reporter) error {
	n := len(perm)
	if n < 2 {
		return nil
	}
	digit := uint(16)
	if width <= 8 {
		digit = 8
	}
	mask := uint64(1)<<digit - 1
	count := make([]int, 1<<digit)
	tp := make([]uint32, n)
	tk := make([]uint64, n)

	src, srcKeys, dst, dstKeys := perm, keys, tp, tk
	var err error
	for shift := uint(0); shift < width; shift += digit {
		if err = rep.Check(); err != nil {
			break
		}
		clear(count)
		for _, k := range srcKeys {
			count[(k>>shift)&mask]++
		}
		// Every row has the same digit.
		if count[(srcKeys[0]>>shift)&mask] == n {
			continue
		}
		sum := 0
		for i, c := range count {
			count[i] = sum
			sum += c
		}
		for i, k := range srcKeys {
			d := (k >> shift) & mask
			dst[count[d]] = src[i]
			dstKeys[count[d]] = k
			count[d]++
		}
		src, dst = dst, src
		srcKeys, dstKeys = dstKeys, srcKeys
	}
	if &src[0] != &perm[0] {
		copy(perm, src)
	}
	return err
}

// radixByKey fills the key of every permuted row with enc, flipping it for
// descending order, and radix sorts.
func radixByKey(perm []uint32, width uint, desc bool, enc func(row uint32) uint64, rep *progress.Reporter) error {
	keys := make([]uint64, len(perm))
	all := uint64(math.MaxUint64)
	if width < 64 {
		all = uint64(1)<<width - 1
	}
	for i, row := range perm {
		k := enc(row)
		if desc {
			k = ^k & all
		}
		keys[i] = k
	}
	return radixSort(perm, keys, width, rep)
}

func signedKey[T ~int64 | ~int32 | ~int16 | ~int8](vals []T, width uint) func(uint32) uint64 {
	bias := uint64(1) << (width - 1)
	all := uint64(math.MaxUint64)
	if width < 64 {
		all = uint64(1)<<width - 1
	}
	return func(row uint32) uint64 {
		return (uint64(int64(vals[row])) ^ bias) & all
	}
}

func unsignedKey[T uint64 | uint32 | uint16 | uint8](vals []T) func(uint32) uint64 {
	return func(row uint32) uint64 {
		return uint64(vals[row])
	}
}

// absFloatKey clears the sign bit so that the IEEE-754 pattern orders by
// magnitude. -0 and +0 share a key and every NaN maps to the largest key.
func absFloatKey(vals []float64) func(uint32) uint64 {
	return func(row uint32) uint64 {
		v := vals[row]
		if math.IsNaN(v) {
			return math.MaxInt64
		}
		return math.Float64bits(v) &^ (1 << 63)
	}
}

func absFloat32Key(vals []float32) func(uint32) uint64 {
	return func(row uint32) uint64 {
		v := vals[row]
		if v != v {
			return math.MaxInt32
		}
		return uint64(math.Float32bits(v) &^ (1 << 31))
	}
}

// partitionStable moves the rows for which last returns true to the end,
// keeping the relative order of both groups.
func partitionStable(perm []uint32, last func(row uint32) bool) {
	var tail []uint32
	w := 0
	for _, row := range perm {
		if last(row) {
			tail = append(tail, row)
			continue
		}
		perm[w] = row
		w++
	}
	copy(perm[w:], tail)
}
