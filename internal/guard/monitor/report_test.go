package monitor

import (
	"strings"
	"testing"
	"time"

	"github.com/kolkov/loopguard/internal/guard/stack"
)

func TestOverflowReportString(t *testing.T) {
	r := OverflowReport{
		LoopName:  "ingest",
		Observed:  2_500_000,
		Threshold: 1_000_000,
		Time:      time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Frames: []stack.Frame{
			{Function: "main.ingest", File: "/src/app/main.go", Line: 42, PC: 0x4010ab},
			{Function: "main.main", File: "/src/app/main.go", Line: 12, PC: 0x4009f0},
		},
	}

	out := r.String()

	for _, want := range []string{
		blockDelimiter,
		"WARNING: LOOP OVERFLOW",
		"Loop: ingest",
		"Count: 2500000 | Threshold: 1000000",
		"Time: 2026-03-14T09:26:53Z",
		stackStartMarker,
		"main.ingest()",
		"/src/app/main.go:42",
		stackEndMarker,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	// Block is delimited on both ends.
	if !strings.HasPrefix(out, blockDelimiter+"\n") {
		t.Errorf("report does not start with delimiter:\n%s", out)
	}
	if !strings.HasSuffix(out, blockDelimiter+"\n") {
		t.Errorf("report does not end with delimiter:\n%s", out)
	}
}

func TestOverflowReportString_NoFrames(t *testing.T) {
	r := OverflowReport{
		LoopName:  "quiet",
		Observed:  10,
		Threshold: 5,
		Time:      time.Now(),
	}

	out := r.String()
	if strings.Contains(out, stackStartMarker) || strings.Contains(out, stackEndMarker) {
		t.Errorf("frame section present for frameless report:\n%s", out)
	}
	if !strings.Contains(out, "Loop: quiet") {
		t.Errorf("report body missing:\n%s", out)
	}
}

func TestFilterFrames(t *testing.T) {
	tests := []struct {
		name   string
		frames []stack.Frame
		want   []string
	}{
		{
			name: "drops runtime and guard plumbing",
			frames: []stack.Frame{
				{Function: "github.com/kolkov/loopguard/guard.CheckSize"},
				{Function: "github.com/kolkov/loopguard/internal/guard/monitor.(*Monitor).warn"},
				{Function: "main.work"},
				{Function: "runtime.goexit"},
			},
			want: []string{"main.work"},
		},
		{
			name: "keeps raw address frames",
			frames: []stack.Frame{
				{PC: 0xdeadbeef},
				{Function: "main.work"},
			},
			want: []string{"", "main.work"},
		},
		{
			name:   "empty in, empty out",
			frames: nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterFrames(tt.frames)
			if len(got) != len(tt.want) {
				t.Fatalf("filterFrames kept %d frames, want %d", len(got), len(tt.want))
			}
			for i, fn := range tt.want {
				if got[i].Function != fn {
					t.Errorf("frame %d = %q, want %q", i, got[i].Function, fn)
				}
			}
		})
	}
}
