// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

// longestIncreasingSubsequence returns the indexes of the longest
// strictly increasing subsequence of key(0), key(1), ..., key(n-1).
// It is used to salvage the largest mutually consistent subset of
// segment rows for one sample and chromosome, dropping the rest.
func longestIncreasingSubsequence(n int, key func(int) int64) []int {
	if n == 0 {
		return nil
	}
	tails := make([]int, n+1) // tails[j] == index i such that key(i) ends the lowest-ending increasing subsequence of length j found so far
	prev := make([]int, n)    // prev[i] == predecessor of i in the longest increasing subsequence ending at i
	best := 0
	for i := 0; i < n; i++ {
		lo, hi := 1, best
		for lo <= hi {
			mid := (lo + hi + 1) / 2
			if key(tails[mid]) < key(i) {
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
		if i > 0 {
			prev[i] = tails[lo-1]
		}
		tails[lo] = i
		if lo > best {
			best = lo
		}
	}
	ret := make([]int, best)
	for k, i := tails[best], best-1; i >= 0; k, i = prev[k], i-1 {
		ret[i] = k
	}
	return ret
}
