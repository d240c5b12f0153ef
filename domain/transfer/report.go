package transfer

import (
	"encoding/json"
	"fmt"
)

// Status is the terminal status of a task
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Location is the sink's proof of a durable write
type Location struct {
	Path string // sink-relative key
	URL  string // addressable URL, empty when the sink cannot produce one
}

// Outcome is the single recorded result of one task
type Outcome struct {
	Index    int
	Name     string
	Status   Status
	Location Location  // success only
	Bytes    int64     // success only
	Kind     ErrorKind // failure only
	Detail   string    // failure only
}

// Succeeded builds a success outcome for task t
func Succeeded(t Task, loc Location, n int64) Outcome {
	return Outcome{
		Index:    t.Index,
		Name:     t.Descriptor.Name,
		Status:   StatusSuccess,
		Location: loc,
		Bytes:    n,
	}
}

// Failed builds a failure outcome for task t
func Failed(t Task, kind ErrorKind, detail string) Outcome {
	return Outcome{
		Index:  t.Index,
		Name:   t.Descriptor.Name,
		Status: StatusError,
		Kind:   kind,
		Detail: detail,
	}
}

// OK reports whether the outcome is a success
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Report holds one outcome per discovered file, in discovery order
type Report struct {
	Outcomes []Outcome
}

// Total is the number of files the batch attempted
func (r *Report) Total() int {
	return len(r.Outcomes)
}

// Succeeded counts success outcomes
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed counts failure outcomes
func (r *Report) Failed() int {
	return r.Total() - r.Succeeded()
}

// Failures returns the failure outcomes in discovery order
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

type resultJSON struct {
	Name            string `json:"name"`
	Status          Status `json:"status"`
	Size            *int64 `json:"size,omitempty"`
	DestinationPath string `json:"destinationPath,omitempty"`
	Error           string `json:"error,omitempty"`
}

type reportJSON struct {
	TotalFiles int          `json:"totalFiles"`
	Results    []resultJSON `json:"results"`
}

// MarshalJSON renders the report in its wire shape
func (r *Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		TotalFiles: r.Total(),
		Results:    make([]resultJSON, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		res := resultJSON{Name: o.Name, Status: o.Status}
		if o.OK() {
			size := o.Bytes
			res.Size = &size
			res.DestinationPath = o.Location.Path
		} else {
			res.Error = fmt.Sprintf("%s: %s", o.Kind, o.Detail)
		}
		out.Results = append(out.Results, res)
	}
	return json.Marshal(out)
}

type batchErrorJSON struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// MarshalJSON renders the batch-level error shape, which has no results
func (e *BatchError) MarshalJSON() ([]byte, error) {
	out := batchErrorJSON{Message: e.Message}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}
