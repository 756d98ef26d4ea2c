package influence

import (
	"fmt"
	"strings"
)

// Matrix is a dense N×N matrix of non-negative co-activity counts.
// Built once by Detect; read-only afterwards.
type Matrix struct {
	n    int
	data []int64
}

// NewMatrix allocates a zero N×N matrix.
func NewMatrix(n int) *Matrix {
	return &Matrix{n: n, data: make([]int64, n*n)}
}

// MatrixFromRows copies a square row-major matrix. Used for tests and fixtures.
func MatrixFromRows(rows [][]int64) (*Matrix, error) {
	m := NewMatrix(len(rows))
	for i, row := range rows {
		if len(row) != m.n {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), m.n)
		}
		for j, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("negative weight %d at (%d,%d)", v, i, j)
			}
			m.data[i*m.n+j] = v
		}
	}
	return m, nil
}

// Size returns N.
func (m *Matrix) Size() int { return m.n }

// At returns entry (i,j).
func (m *Matrix) At(i, j int) int64 { return m.data[i*m.n+j] }

func (m *Matrix) add(i, j int, v int64) { m.data[i*m.n+j] += v }

// Rows returns a copy of the matrix as nested slices.
func (m *Matrix) Rows() [][]int64 {
	rows := make([][]int64, m.n)
	for i := range rows {
		rows[i] = append([]int64(nil), m.data[i*m.n:(i+1)*m.n]...)
	}
	return rows
}

// Max returns the largest entry, 0 for an empty matrix.
func (m *Matrix) Max() int64 {
	var max int64
	for _, v := range m.data {
		if v > max {
			max = v
		}
	}
	return max
}

// IsSymmetric reports whether M(i,j) == M(j,i) for all i,j.
func (m *Matrix) IsSymmetric() bool {
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if m.At(i, j) != m.At(j, i) {
				return false
			}
		}
	}
	return true
}

func (m *Matrix) String() string {
	var sb strings.Builder
	for i := 0; i < m.n; i++ {
		sb.WriteString(fmt.Sprint(m.data[i*m.n : (i+1)*m.n]))
		if i < m.n-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
