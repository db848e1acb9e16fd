package raster

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		w, h, c   int
		pixLen    int
		shouldErr bool
	}{
		{"rgb", 2, 2, 3, 12, false},
		{"rgba", 3, 1, 4, 12, false},
		{"gray", 5, 5, 1, 25, false},
		{"zero width", 0, 4, 3, 0, true},
		{"zero height", 4, 0, 3, 0, true},
		{"negative", -1, 4, 3, 0, true},
		{"two channels", 2, 2, 2, 8, true},
		{"short buffer", 2, 2, 3, 11, true},
		{"long buffer", 2, 2, 3, 13, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := New(tt.w, tt.h, tt.c, make([]byte, tt.pixLen))
			if tt.shouldErr {
				if err == nil {
					t.Errorf("expected error, got image %v", img)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if img.Len() != tt.w*tt.h {
				t.Errorf("Len = %d, want %d", img.Len(), tt.w*tt.h)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	img, err := NewBlank(4, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Offset(1, 2); got != (2*4+1)*3 {
		t.Errorf("Offset(1,2) = %d", got)
	}
	if len(img.Pix) != 36 {
		t.Errorf("blank buffer is %d bytes", len(img.Pix))
	}
}
