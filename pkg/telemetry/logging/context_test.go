package logging

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetJobID(ctx) != "" || GetJobKind(ctx) != "" {
		t.Fatal("empty context returned values")
	}

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithJob(ctx, "job-7", "weekly_cleanup")

	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q", got)
	}
	if got := GetJobID(ctx); got != "job-7" {
		t.Errorf("GetJobID() = %q", got)
	}
	if got := GetJobKind(ctx); got != "weekly_cleanup" {
		t.Errorf("GetJobKind() = %q", got)
	}

	fields := extractContextFields(ctx)
	if len(fields) != 3 {
		t.Errorf("extractContextFields() returned %d fields, want 3", len(fields))
	}
}
