package entity

// TableRow pairs a data row's label text with the cell sliced out for the
// target hour.
type TableRow struct {
	LabelText string
	ValueText string
}

// TableSlice is the parser's output: one entry per recognized data row, in
// source order, plus non-fatal structural warnings.
type TableSlice struct {
	Hour     int
	Rows     []TableRow
	Warnings []string
}
