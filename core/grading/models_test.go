package grading

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestGradeRecordStatus(t *testing.T) {
	dueDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	subAt := func(ts time.Time) *Submission {
		return &Submission{SubmittedAt: ts}
	}

	tests := []struct {
		name string
		rec  GradeRecord
		want Status
	}{
		{name: "no submission", want: StatusNotSubmitted},
		{
			name: "submitted before due date",
			rec:  GradeRecord{Submission: subAt(time.Date(2024, 1, 9, 23, 0, 0, 0, time.UTC))},
			want: StatusSubmittedOnTime,
		},
		{
			name: "submitted exactly at due date",
			rec:  GradeRecord{Submission: subAt(dueDate)},
			want: StatusSubmittedOnTime,
		},
		{
			name: "submitted after due date",
			rec:  GradeRecord{Submission: subAt(time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC))},
			want: StatusSubmittedLate,
		},
		{
			name: "graded with no submission",
			rec:  GradeRecord{Grade: null.Float64From(85)},
			want: StatusGraded,
		},
		{
			name: "grade wins over late submission",
			rec: GradeRecord{
				Grade:      null.Float64From(42),
				Submission: subAt(time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)),
			},
			want: StatusGraded,
		},
		{
			name: "zero grade still counts as graded",
			rec:  GradeRecord{Grade: null.Float64From(0)},
			want: StatusGraded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Status(dueDate); got != tt.want {
				t.Errorf("Status() = %v, want %v", got, tt.want)
			}
			// pure: same inputs, same output
			if got := tt.rec.Status(dueDate); got != tt.want {
				t.Errorf("Status() second call = %v, want %v", got, tt.want)
			}
		})
	}
}
