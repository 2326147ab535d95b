package models

// ColumnTree is a column with its tasks in display order.
type ColumnTree struct {
	Column Column  `json:"column"`
	Tasks  []*Task `json:"tasks"`
}

// BoardTree is the nested read view of one board.
type BoardTree struct {
	Board   Board         `json:"board"`
	Columns []*ColumnTree `json:"columns"`
}

// Flatten turns the nested view back into the flat collections used for
// snapshotting. The result is never written back to the store as-is.
func (t *BoardTree) Flatten() *BoardSnapshot {
	snap := &BoardSnapshot{Board: t.Board}
	for _, ct := range t.Columns {
		snap.Columns = append(snap.Columns, ct.Column)
		for _, task := range ct.Tasks {
			snap.Tasks = append(snap.Tasks, *task)
		}
	}
	return snap
}
