package reconcile

// Results summarizes one reconciliation pass over the configured domains.
type Results struct {
	Updated   []string
	Unchanged []string
	Failures  []Failure
}

type Failure struct {
	Domain string
	Error  string
}

func (r Results) Failed() bool {
	return len(r.Failures) > 0
}
