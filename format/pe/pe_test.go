package pe

import (
	stdpe "debug/pe"
	"testing"
)

func TestIsExec(t *testing.T) {
	tests := []struct {
		characteristics uint32
		want            bool
	}{
		{codeMask, true},
		{codeMask | 0x40000000, true}, // IMAGE_SCN_MEM_READ alongside
		{0x40000000, false},
		{0, false},
	}
	for _, tt := range tests {
		sect := &stdpe.Section{SectionHeader: stdpe.SectionHeader{Characteristics: tt.characteristics}}
		if got := isExec(sect); got != tt.want {
			t.Errorf("isExec(characteristics=%#x) = %v, want %v", tt.characteristics, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	f := New()
	if f.ClassName() != "PE" {
		t.Fatalf("ClassName() = %q, want PE", f.ClassName())
	}
}

func TestImageBase(t *testing.T) {
	f32 := &stdpe.File{OptionalHeader: &stdpe.OptionalHeader32{ImageBase: 0x00400000}}
	base, err := imageBase(f32)
	if err != nil {
		t.Fatalf("imageBase(32-bit): %v", err)
	}
	if base != 0x00400000 {
		t.Errorf("imageBase(32-bit) = %#x, want 0x400000", uint64(base))
	}

	f64 := &stdpe.File{OptionalHeader: &stdpe.OptionalHeader64{ImageBase: 0x140000000}}
	base, err = imageBase(f64)
	if err != nil {
		t.Fatalf("imageBase(64-bit): %v", err)
	}
	if base != 0x140000000 {
		t.Errorf("imageBase(64-bit) = %#x, want 0x140000000", uint64(base))
	}

	fNone := &stdpe.File{}
	if _, err := imageBase(fNone); err == nil {
		t.Error("imageBase(nil optional header): want error, got nil")
	}
}
