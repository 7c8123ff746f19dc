package text

import "testing"

func TestLineIndexOffsetPointLF(t *testing.T) {
	t.Parallel()

	src := []byte("ab\ncd")
	idx := NewLineIndex(src)

	if got := idx.LineCount(); got != 2 {
		t.Fatalf("LineCount() = %d, want 2", got)
	}

	tests := map[ByteOffset]Point{
		0: {Line: 0, Column: 0},
		2: {Line: 0, Column: 2}, // before '\n'
		3: {Line: 1, Column: 0},
		5: {Line: 1, Column: 2}, // EOF
	}

	for off, want := range tests {
		got, err := idx.OffsetToPoint(off)
		if err != nil {
			t.Fatalf("OffsetToPoint(%d) error = %v", off, err)
		}
		if got != want {
			t.Fatalf("OffsetToPoint(%d) = %+v, want %+v", off, got, want)
		}

		roundTrip, err := idx.PointToOffset(got)
		if err != nil {
			t.Fatalf("PointToOffset(%+v) error = %v", got, err)
		}
		if roundTrip != off {
			t.Fatalf("PointToOffset(OffsetToPoint(%d)) = %d, want %d", off, roundTrip, off)
		}
	}
}

func TestLineIndexOffsetPointCRLFAndMixedNewlines(t *testing.T) {
	t.Parallel()

	src := []byte("a\r\nb\n\nc")
	idx := NewLineIndex(src)

	if got := idx.LineCount(); got != 4 {
		t.Fatalf("LineCount() = %d, want 4", got)
	}

	// Offsets at newline bytes stay on the preceding line for byte-column positions.
	cases := []struct {
		off  ByteOffset
		want Point
	}{
		{off: 0, want: Point{Line: 0, Column: 0}},
		{off: 1, want: Point{Line: 0, Column: 1}}, // '\r'
		{off: 2, want: Point{Line: 0, Column: 2}}, // '\n'
		{off: 3, want: Point{Line: 1, Column: 0}},
		{off: 4, want: Point{Line: 1, Column: 1}}, // '\n'
		{off: 5, want: Point{Line: 2, Column: 0}}, // empty line
		{off: 6, want: Point{Line: 3, Column: 0}},
		{off: 7, want: Point{Line: 3, Column: 1}}, // EOF
	}

	for _, tc := range cases {
		got, err := idx.OffsetToPoint(tc.off)
		if err != nil {
			t.Fatalf("OffsetToPoint(%d) error = %v", tc.off, err)
		}
		if got != tc.want {
			t.Fatalf("OffsetToPoint(%d) = %+v, want %+v", tc.off, got, tc.want)
		}
	}
}

func TestLineIndexPointToOffsetValidation(t *testing.T) {
	t.Parallel()

	idx := NewLineIndex([]byte("x\ny"))

	if _, err := idx.PointToOffset(Point{Line: -1, Column: 0}); err == nil {
		t.Fatal("expected error for negative line")
	}
	if _, err := idx.PointToOffset(Point{Line: 10, Column: 0}); err == nil {
		t.Fatal("expected error for out-of-range line")
	}
	if _, err := idx.PointToOffset(Point{Line: 0, Column: -1}); err == nil {
		t.Fatal("expected error for negative column")
	}
	// Non-final line should not accept next-line start as a canonical point.
	if _, err := idx.PointToOffset(Point{Line: 0, Column: 2}); err == nil {
		t.Fatal("expected error for non-canonical next-line start column")
	}
}

