package trace

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-nav2d/pkg/geom"
)

func poseAt(i int) geom.Pose2D {
	return geom.Pose2D{
		Position: geom.Position2D{X: float64(i), Y: float64(-i)},
		Heading:  geom.Identity,
	}
}

func TestBuffer_CapKeepsLastEntries(t *testing.T) {
	tests := []struct {
		name string
		cap  int
		n    int
	}{
		{"under_cap", 5, 3},
		{"at_cap", 5, 5},
		{"over_cap", 5, 12},
		{"cap_one", 1, 4},
		{"empty", 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.cap)
			for i := 0; i < tt.n; i++ {
				b.Append(poseAt(i))
			}

			wantLen := min(tt.n, tt.cap)
			if b.Len() != wantLen {
				t.Fatalf("Len() = %d, want %d", b.Len(), wantLen)
			}

			want := make([]geom.Pose2D, 0, wantLen)
			for i := tt.n - wantLen; i < tt.n; i++ {
				want = append(want, poseAt(i))
			}
			if diff := cmp.Diff(want, b.Poses()); diff != "" {
				t.Errorf("Poses() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuffer_UnboundedNeverEvicts(t *testing.T) {
	b := New(0)
	for i := 0; i < 1000; i++ {
		b.Append(poseAt(i))
	}
	if b.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", b.Len())
	}
	if first := b.Poses()[0]; first != poseAt(0) {
		t.Errorf("first pose = %v, want %v", first, poseAt(0))
	}
}

func TestBuffer_NegativeCapIsUnbounded(t *testing.T) {
	b := New(-4)
	if b.MaxLength() != 0 {
		t.Errorf("MaxLength() = %d, want 0", b.MaxLength())
	}
}

func TestBuffer_Spacing(t *testing.T) {
	b := NewWithSpacing(0, 0.5)

	if !b.Append(geom.Pose2D{Position: geom.Position2D{X: 0}}) {
		t.Fatal("first pose should always be recorded")
	}
	if b.Append(geom.Pose2D{Position: geom.Position2D{X: 0.2}}) {
		t.Error("pose within spacing should be dropped")
	}
	if !b.Append(geom.Pose2D{Position: geom.Position2D{X: 0.6}}) {
		t.Error("pose beyond spacing should be recorded")
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
}

func TestBuffer_Clear(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Append(poseAt(i))
	}
	b.Clear()

	if b.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", b.Len())
	}
	if _, ok := b.Last(); ok {
		t.Error("Last() should report empty after Clear")
	}

	b.Append(poseAt(9))
	if last, _ := b.Last(); last != poseAt(9) {
		t.Errorf("Last() = %v, want %v", last, poseAt(9))
	}
}

func TestBuffer_PosesIsCopy(t *testing.T) {
	b := New(2)
	b.Append(poseAt(1))
	got := b.Poses()
	got[0] = poseAt(7)

	if last, _ := b.Last(); last != poseAt(1) {
		t.Error("mutating Poses() result changed the buffer")
	}
}
