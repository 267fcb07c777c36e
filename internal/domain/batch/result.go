package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusInserted ItemStatus = "inserted"
	StatusUpdated  ItemStatus = "updated"
	StatusError    ItemStatus = "error"
)

// Result is the outcome of writing one item in a batch operation.
type Result struct {
	id     string
	status ItemStatus
	err    error
}

// NewInserted creates a result for an item that did not exist before.
func NewInserted(id string) Result { return Result{id: id, status: StatusInserted} }

// NewUpdated creates a result for an item that overwrote an existing one.
func NewUpdated(id string) Result { return Result{id: id, status: StatusUpdated} }

// NewError creates a failed batch result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the item identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Counts aggregates batch results.
type Counts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// Tally counts results by status.
func Tally(results []Result) Counts {
	var c Counts
	for _, r := range results {
		switch r.status {
		case StatusInserted:
			c.Inserted++
		case StatusUpdated:
			c.Updated++
		default:
			c.Failed++
		}
	}
	return c
}

// Failures returns the failed results.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.status == StatusError {
			out = append(out, r)
		}
	}
	return out
}
