// Package scale grows benchmark tables to precise row counts by
// replicating a small base table in bounded batches.
package scale

import "fmt"

// Batch is one planned insert of a fixed number of rows.
type Batch struct {
	Label string
	Rows  int64
}

// Plan describes the work needed to move a table from its current
// row count to the target. Counts are estimates for display; the
// scaler re-measures after every mutating statement.
type Plan struct {
	CurrentCount int64
	TargetCount  int64
	Unit         int64
	BaseCount    int64

	// Correction is the row count of the boundary-rounding insert,
	// already truncated to a whole number of base table copies.
	Correction int64

	// Chunks is the number of full unit-sized inserts after rounding.
	Chunks int64

	// FullCopies and Partial decompose the final remainder into whole
	// base table copies plus a row-limited slice.
	FullCopies int64
	Partial    int64
}

// RoundingCorrection returns the rows needed to lift current up to
// the next unit boundary, truncated down to a whole multiple of the
// base table's row count. Returns zero when already on a boundary.
func RoundingCorrection(current, unit, baseCount int64) int64 {
	remainder := current % unit
	if remainder == 0 {
		return 0
	}
	correction := unit - remainder
	return (correction / baseCount) * baseCount
}

// ChunksNeeded returns how many full unit inserts fit in the gap.
func ChunksNeeded(current, target, unit int64) int64 {
	if current >= target {
		return 0
	}
	return (target - current) / unit
}

// Remainder decomposes a row gap into whole base table copies plus a
// partial slice.
func Remainder(gap, baseCount int64) (fullCopies, partial int64) {
	if gap <= 0 {
		return 0, 0
	}
	return gap / baseCount, gap % baseCount
}

// BuildPlan computes the full plan for scaling current to target.
func BuildPlan(current, target, unit, baseCount int64) Plan {
	p := Plan{
		CurrentCount: current,
		TargetCount:  target,
		Unit:         unit,
		BaseCount:    baseCount,
	}
	if current >= target {
		return p
	}

	p.Correction = RoundingCorrection(current, unit, baseCount)
	afterRounding := current + p.Correction
	if afterRounding > target {
		// The boundary lies past the target; skip straight to the
		// remainder phase.
		p.Correction = 0
		afterRounding = current
	}

	p.Chunks = ChunksNeeded(afterRounding, target, unit)
	afterBulk := afterRounding + p.Chunks*unit
	p.FullCopies, p.Partial = Remainder(target-afterBulk, baseCount)
	return p
}

// TotalRows returns the number of rows the plan adds.
func (p Plan) TotalRows() int64 {
	return p.Correction + p.Chunks*p.Unit + p.FullCopies*p.BaseCount + p.Partial
}

// Batches expands the bulk phase into labeled unit inserts.
func (p Plan) Batches() []Batch {
	batches := make([]Batch, 0, p.Chunks)
	for i := int64(1); i <= p.Chunks; i++ {
		batches = append(batches, Batch{
			Label: fmt.Sprintf("Batch %d", i),
			Rows:  p.Unit,
		})
	}
	return batches
}
