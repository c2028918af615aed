package core

// DBOrdering is a single ORDER BY term. Repositories are expected to
// whitelist Field against their own columns before interpolating.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
