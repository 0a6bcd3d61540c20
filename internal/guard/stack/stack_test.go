package stack

import (
	"strings"
	"testing"
)

func TestRuntimeCapturer(t *testing.T) {
	c := RuntimeCapturer{}
	frames := c.Capture(0, DefaultDepth)

	if len(frames) == 0 {
		t.Fatal("Capture returned no frames")
	}

	// skip=0 means the innermost frame is the caller of Capture, this test.
	if !strings.Contains(frames[0].Function, "TestRuntimeCapturer") {
		t.Errorf("innermost frame = %q, want this test function", frames[0].Function)
	}
	if frames[0].File == "" || frames[0].Line == 0 {
		t.Errorf("innermost frame missing location: %+v", frames[0])
	}
}

func TestRuntimeCapturer_Skip(t *testing.T) {
	inner := func() []Frame {
		return RuntimeCapturer{}.Capture(1, DefaultDepth)
	}
	frames := inner()

	if len(frames) == 0 {
		t.Fatal("Capture returned no frames")
	}
	if strings.Contains(frames[0].Function, "func1") {
		t.Errorf("skip=1 still shows the closure frame: %q", frames[0].Function)
	}
	if !strings.Contains(frames[0].Function, "TestRuntimeCapturer_Skip") {
		t.Errorf("innermost frame = %q, want the skipping caller", frames[0].Function)
	}
}

func TestRuntimeCapturer_MaxClamped(t *testing.T) {
	tests := []struct {
		name string
		max  int
	}{
		{"zero falls back to default", 0},
		{"negative falls back to default", -3},
		{"beyond cap is clamped", MaxDepth + 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := RuntimeCapturer{}.Capture(0, tt.max)
			if len(frames) == 0 {
				t.Fatal("Capture returned no frames")
			}
			if len(frames) > MaxDepth {
				t.Errorf("captured %d frames, cap is %d", len(frames), MaxDepth)
			}
		})
	}
}

func TestNopCapturer(t *testing.T) {
	if frames := (NopCapturer{}).Capture(0, DefaultDepth); frames != nil {
		t.Errorf("NopCapturer returned %d frames, want nil", len(frames))
	}
}

func TestFrameString(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  []string
	}{
		{
			name:  "symbolized frame",
			frame: Frame{Function: "main.work", File: "/src/main.go", Line: 17, PC: 0x45abc0},
			want:  []string{"main.work()", "/src/main.go:17", "+0x"},
		},
		{
			name:  "raw address frame",
			frame: Frame{PC: 0xdeadbeef},
			want:  []string{"0x00000000deadbeef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.frame.String()
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("Frame.String() = %q, missing %q", got, want)
				}
			}
		})
	}
}
