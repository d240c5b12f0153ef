package transfer

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestReport_Counts(t *testing.T) {
	tasks := []Task{
		NewTask(0, FileDescriptor{ID: "1", Name: "a.mp3"}, "audio"),
		NewTask(1, FileDescriptor{ID: "2", Name: "b.mp3"}, "audio"),
		NewTask(2, FileDescriptor{ID: "3", Name: "c.mp3"}, "audio"),
	}

	report := &Report{Outcomes: []Outcome{
		Succeeded(tasks[0], Location{Path: "audio/a.mp3"}, 10),
		Failed(tasks[1], KindStreamInterrupted, "connection reset"),
		Succeeded(tasks[2], Location{Path: "audio/c.mp3"}, 30),
	}}

	if report.Total() != 3 {
		t.Errorf("expected total 3, got %d", report.Total())
	}
	if report.Succeeded() != 2 {
		t.Errorf("expected 2 succeeded, got %d", report.Succeeded())
	}
	if report.Failed() != 1 {
		t.Errorf("expected 1 failed, got %d", report.Failed())
	}
	if report.Succeeded()+report.Failed() != report.Total() {
		t.Error("succeeded + failed must equal total")
	}

	failures := report.Failures()
	if len(failures) != 1 || failures[0].Name != "b.mp3" {
		t.Errorf("expected single failure for b.mp3, got %+v", failures)
	}
}

func TestReport_MarshalJSON(t *testing.T) {
	ok := NewTask(0, FileDescriptor{ID: "1", Name: "a.mp3"}, "audio")
	bad := NewTask(1, FileDescriptor{ID: "2", Name: "b.mp3"}, "audio")

	report := &Report{Outcomes: []Outcome{
		Succeeded(ok, Location{Path: "audio/a.mp3", URL: "gs://bucket/audio/a.mp3"}, 1024),
		Failed(bad, KindUpstreamWrite, "quota exceeded"),
	}}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}

	if got["totalFiles"] != float64(2) {
		t.Errorf("expected totalFiles 2, got %v", got["totalFiles"])
	}

	results, ok2 := got["results"].([]any)
	if !ok2 || len(results) != 2 {
		t.Fatalf("expected 2 results, got %v", got["results"])
	}

	first := results[0].(map[string]any)
	if first["status"] != "success" {
		t.Errorf("expected success status, got %v", first["status"])
	}
	if first["size"] != float64(1024) {
		t.Errorf("expected size 1024, got %v", first["size"])
	}
	if first["destinationPath"] != "audio/a.mp3" {
		t.Errorf("expected destinationPath audio/a.mp3, got %v", first["destinationPath"])
	}
	if _, has := first["error"]; has {
		t.Error("success result should not carry an error")
	}

	second := results[1].(map[string]any)
	if second["status"] != "error" {
		t.Errorf("expected error status, got %v", second["status"])
	}
	if _, has := second["size"]; has {
		t.Error("error result should not carry a size")
	}
	if msg, _ := second["error"].(string); !strings.Contains(msg, "quota exceeded") {
		t.Errorf("expected error detail, got %q", msg)
	}
}

func TestReport_MarshalJSON_Empty(t *testing.T) {
	data, err := json.Marshal(&Report{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"totalFiles":0,"results":[]}` {
		t.Errorf("unexpected json: %s", data)
	}
}

func TestBatchError_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		err  *BatchError
		want string
	}{
		{
			name: "with cause",
			err:  &BatchError{Message: "Failed to transfer files", Err: errors.New("403")},
			want: `{"message":"Failed to transfer files","error":"403"}`,
		},
		{
			name: "without cause",
			err:  &BatchError{Message: "Missing required parameters"},
			want: `{"message":"Missing required parameters"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.err)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, data)
			}
			if strings.Contains(string(data), "results") {
				t.Error("batch error must not carry results")
			}
		})
	}
}
