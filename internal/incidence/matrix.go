// Package incidence implements the sparse weighted interaction structure
// shared by the statistics aggregation stages. A matrix cell (row, col)
// counts interactions authored by col and received by row.
package incidence

import "sort"

// Matrix maps a recipient ID to actor IDs and their interaction counts.
// The cell set is fixed at seeding time; increments outside the seeded
// skeleton are dropped so that only interactions between people already
// connected through the source user are counted.
type Matrix map[int64]map[int64]int

// Seed builds the zero-weight skeleton for one source user. Every friend
// present in the topology, every friend absent from it, and the source user
// receive a row. A topology row gets one cell per mutual friend; every row
// gets a cell pointing at the source user.
func Seed(sourceUserID int64, friendIDs []int64, topology map[int64][]int64) Matrix {
	matrix := make(Matrix, len(friendIDs)+1)

	ensureRow := func(rowID int64) map[int64]int {
		row, exists := matrix[rowID]
		if !exists {
			row = make(map[int64]int)
			matrix[rowID] = row
		}
		return row
	}

	for friendID, mutualIDs := range topology {
		row := ensureRow(friendID)
		for _, mutualID := range mutualIDs {
			row[mutualID] = 0
		}
		row[sourceUserID] = 0
	}
	for _, friendID := range friendIDs {
		row := ensureRow(friendID)
		row[sourceUserID] = 0
	}
	ensureRow(sourceUserID)[sourceUserID] = 0

	return matrix
}

// Increment raises the weight of one seeded cell by one and reports whether
// the cell existed. Cells outside the skeleton are left untouched.
func (matrix Matrix) Increment(rowID int64, colID int64) bool {
	row, rowExists := matrix[rowID]
	if !rowExists {
		return false
	}
	if _, cellExists := row[colID]; !cellExists {
		return false
	}
	row[colID]++
	return true
}

// Weight returns the current weight of a cell; zero for absent cells.
func (matrix Matrix) Weight(rowID int64, colID int64) int {
	return matrix[rowID][colID]
}

// Clone returns an independent deep copy of the matrix.
func (matrix Matrix) Clone() Matrix {
	cloned := make(Matrix, len(matrix))
	for rowID, row := range matrix {
		clonedRow := make(map[int64]int, len(row))
		for colID, weight := range row {
			clonedRow[colID] = weight
		}
		cloned[rowID] = clonedRow
	}
	return cloned
}

// Merge folds another matrix's weights into this one, honoring the
// skeleton: cells absent here are dropped. Used as the single-writer merge
// step after a concurrent aggregation stage completes.
func (matrix Matrix) Merge(other Matrix) {
	for rowID, row := range other {
		targetRow, rowExists := matrix[rowID]
		if !rowExists {
			continue
		}
		for colID, weight := range row {
			if _, cellExists := targetRow[colID]; cellExists {
				targetRow[colID] += weight
			}
		}
	}
}

// Rows returns the row IDs in ascending order for deterministic iteration.
func (matrix Matrix) Rows() []int64 {
	rowIDs := make([]int64, 0, len(matrix))
	for rowID := range matrix {
		rowIDs = append(rowIDs, rowID)
	}
	sort.Slice(rowIDs, func(firstIndex, secondIndex int) bool {
		return rowIDs[firstIndex] < rowIDs[secondIndex]
	})
	return rowIDs
}

// Cols returns the column IDs of one row in ascending order.
func (matrix Matrix) Cols(rowID int64) []int64 {
	row := matrix[rowID]
	colIDs := make([]int64, 0, len(row))
	for colID := range row {
		colIDs = append(colIDs, colID)
	}
	sort.Slice(colIDs, func(firstIndex, secondIndex int) bool {
		return colIDs[firstIndex] < colIDs[secondIndex]
	})
	return colIDs
}
