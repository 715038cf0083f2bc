package tracking

import (
	"math"
	"slices"
)

// opKind is the kind of one step of an edit script.
type opKind uint8

const (
	opEqual opKind = iota
	opInsert
	opDelete
)

// editOp is one step of an edit script. For opEqual both indices are
// set; opDelete only sets oldIndex and opInsert only sets newIndex.
type editOp struct {
	kind     opKind
	oldIndex int
	newIndex int
}

// editScript computes the shortest edit script turning prev into next,
// comparing elements with eq. The common prefix and suffix are matched
// before running Myers on the remaining window. If the window needs more
// than maxEdits insertions and deletions, editScript gives up and reports
// false. A negative maxEdits removes the limit.
func editScript[T any](prev, next []T, eq func(a, b T) bool, maxEdits int) ([]editOp, bool) {
	n, m := len(prev), len(next)

	prefix := 0
	for prefix < n && prefix < m && eq(prev[prefix], next[prefix]) {
		prefix++
	}
	suffix := 0
	for suffix < n-prefix && suffix < m-prefix && eq(prev[n-1-suffix], next[m-1-suffix]) {
		suffix++
	}

	window, ok := myersDiff(prev[prefix:n-suffix], next[prefix:m-suffix], eq, maxEdits)
	if !ok {
		return nil, false
	}

	ops := make([]editOp, 0, prefix+len(window)+suffix)
	for i := 0; i < prefix; i++ {
		ops = append(ops, editOp{kind: opEqual, oldIndex: i, newIndex: i})
	}
	for _, op := range window {
		op.oldIndex += prefix
		op.newIndex += prefix
		ops = append(ops, op)
	}
	for i := suffix; i > 0; i-- {
		ops = append(ops, editOp{kind: opEqual, oldIndex: n - i, newIndex: m - i})
	}
	return ops, true
}

// maxEditsForMemory returns the edit distance whose Myers trace fits in
// maxMemoryMB. The trace of distance D holds about D*D ints.
func maxEditsForMemory(maxMemoryMB int) int {
	ints := int64(maxMemoryMB) * 1024 * 1024 / 8
	d := int(math.Sqrt(float64(ints)))
	for int64(d)*int64(d) > ints {
		d--
	}
	return d
}

// myersDiff implements the Myers O(ND) diff algorithm. Only the diagonals
// reachable at each step are kept in the trace, so memory is O(D^2).
func myersDiff[T any](prev, next []T, eq func(a, b T) bool, maxEdits int) ([]editOp, bool) {
	n := len(prev)
	m := len(next)

	if n == 0 && m == 0 {
		return nil, true
	}
	if maxEdits >= 0 && n+m > maxEdits && (n == 0 || m == 0) {
		return nil, false
	}
	if n == 0 {
		ops := make([]editOp, m)
		for i := 0; i < m; i++ {
			ops[i] = editOp{kind: opInsert, newIndex: i}
		}
		return ops, true
	}
	if m == 0 {
		ops := make([]editOp, n)
		for i := 0; i < n; i++ {
			ops[i] = editOp{kind: opDelete, oldIndex: i}
		}
		return ops, true
	}

	maxD := n + m
	if maxEdits >= 0 && maxEdits < maxD {
		maxD = maxEdits
	}

	// V[k] for k in [-maxD-1, maxD+1] maps to v[offset+k].
	offset := maxD + 1
	v := make([]int, 2*maxD+3)

	var trace [][]int
	for d := 0; d <= maxD; d++ {
		// trace[d] holds V before step d, on diagonals -d-1..d+1.
		trace = append(trace, slices.Clone(v[offset-d-1:offset+d+2]))

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k

			for x < n && y < m && eq(prev[x], next[y]) {
				x++
				y++
			}
			v[offset+k] = x

			if x >= n && y >= m {
				return backtrack(trace, n, m), true
			}
		}
	}
	return nil, false
}

// backtrack rebuilds the edit script from the recorded V windows.
func backtrack(trace [][]int, n, m int) []editOp {
	x, y := n, m
	var ops []editOp

	for d := len(trace) - 1; d >= 0; d-- {
		window := trace[d]
		at := func(k int) int { return window[k+d+1] }
		k := x - y

		var prevK int
		if k == -d || (k != d && at(k-1) < at(k+1)) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}

		prevX := at(prevK)
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			ops = append(ops, editOp{kind: opEqual, oldIndex: x, newIndex: y})
		}

		if d > 0 {
			if x > prevX {
				x--
				ops = append(ops, editOp{kind: opDelete, oldIndex: x})
			} else if y > prevY {
				y--
				ops = append(ops, editOp{kind: opInsert, newIndex: y})
			}
		}
	}

	slices.Reverse(ops)
	return ops
}
