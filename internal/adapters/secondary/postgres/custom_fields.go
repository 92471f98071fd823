package postgres

// CustomFields names the tracker custom fields the repositories read.
type CustomFields struct {
	// ETA is the field holding a task's estimate in hours, stored as text.
	ETA int32
	// TaskType lists the fields holding a task's type, in lookup order.
	TaskType []int32
}

// DefaultCustomFields matches the stock tracker configuration.
func DefaultCustomFields() CustomFields {
	return CustomFields{ETA: 4, TaskType: []int32{40, 54}}
}
