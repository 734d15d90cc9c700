// Package coverage relates capsule candidates to witness points. The
// matrix answers, per candidate, exactly which witnesses it contains;
// everything downstream (solver, diagnostics) reads coverage from here
// instead of re-running geometry.
package coverage

import (
	"math/bits"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/capsule"
)

// Matrix is a dense bitset with one row per candidate and one column per
// witness point. Rows pack 64 columns per word.
type Matrix struct {
	rows   [][]uint64
	points int
}

// Build evaluates every candidate against every witness point. Rows are
// filled concurrently; workers <= 0 means one per CPU.
func Build(candidates []capsule.Candidate, points []mgl64.Vec3, workers int) *Matrix {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	m := &Matrix{
		rows:   make([][]uint64, len(candidates)),
		points: len(points),
	}
	words := (len(points) + 63) / 64

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				row := make([]uint64, words)
				c := &candidates[i]
				for j, p := range points {
					if c.Contains(p) {
						row[j/64] |= 1 << (uint(j) % 64)
					}
				}
				m.rows[i] = row
			}
		}()
	}
	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return m
}

// NumCandidates returns the row count.
func (m *Matrix) NumCandidates() int { return len(m.rows) }

// NumPoints returns the column count.
func (m *Matrix) NumPoints() int { return m.points }

// Covers reports whether candidate c contains witness p.
func (m *Matrix) Covers(c, p int) bool {
	return m.rows[c][p/64]&(1<<(uint(p)%64)) != 0
}

// Count returns how many witnesses candidate c covers.
func (m *Matrix) Count(c int) int {
	total := 0
	for _, w := range m.rows[c] {
		total += bits.OnesCount64(w)
	}
	return total
}

// Uncovered returns the witness indices that none of the selected
// candidates contain. A nil selection means all candidates.
func (m *Matrix) Uncovered(selected []int) []int {
	words := (m.points + 63) / 64
	acc := make([]uint64, words)
	if selected == nil {
		for _, row := range m.rows {
			for w, word := range row {
				acc[w] |= word
			}
		}
	} else {
		for _, c := range selected {
			for w, word := range m.rows[c] {
				acc[w] |= word
			}
		}
	}

	var missing []int
	for p := 0; p < m.points; p++ {
		if acc[p/64]&(1<<(uint(p)%64)) == 0 {
			missing = append(missing, p)
		}
	}
	return missing
}

// WithoutColumns returns a copy of the matrix with the given witness
// columns removed. Used when uncoverable witnesses are dropped rather
// than treated as fatal.
func (m *Matrix) WithoutColumns(cols []int) *Matrix {
	drop := make(map[int]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}

	kept := 0
	remap := make([]int, m.points)
	for p := 0; p < m.points; p++ {
		if drop[p] {
			remap[p] = -1
			continue
		}
		remap[p] = kept
		kept++
	}

	out := &Matrix{
		rows:   make([][]uint64, len(m.rows)),
		points: kept,
	}
	words := (kept + 63) / 64
	for i := range m.rows {
		row := make([]uint64, words)
		for p := 0; p < m.points; p++ {
			if remap[p] >= 0 && m.Covers(i, p) {
				q := remap[p]
				row[q/64] |= 1 << (uint(q) % 64)
			}
		}
		out.rows[i] = row
	}
	return out
}

// Row returns candidate c's coverage as witness indices, ascending.
func (m *Matrix) Row(c int) []int {
	var out []int
	for p := 0; p < m.points; p++ {
		if m.Covers(c, p) {
			out = append(out, p)
		}
	}
	return out
}
