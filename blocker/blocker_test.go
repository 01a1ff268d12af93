package blocker

import (
	"testing"

	"github.com/mewmew/rop/bin"
)

type fakeRegion struct {
	name  string
	vaddr bin.Addr
	size  uint64
}

func (r fakeRegion) Name() string   { return r.name }
func (r fakeRegion) Vaddr() bin.Addr { return r.vaddr }
func (r fakeRegion) Size() uint64   { return r.size }

func TestBuildBlocksTextDotRegions(t *testing.T) {
	b := Build([]NamedRegion{
		fakeRegion{".text.foo", 0x1000, 0x10},
		fakeRegion{".rodata", 0x2000, 0x10},
	})
	if !b.Blocked(0x1000) || !b.Blocked(0x100f) {
		t.Errorf("expected [0x1000, 0x1010) to be blocked")
	}
	if b.Blocked(0x1010) {
		t.Errorf("0x1010 is outside the region, should not be blocked")
	}
	if b.Blocked(0x2000) {
		t.Errorf(".rodata should never be blocked")
	}
}

func TestBuildIgnoresExactTextName(t *testing.T) {
	b := Build([]NamedRegion{
		fakeRegion{".text", 0x1000, 0x10},
	})
	if b.Blocked(0x1000) {
		t.Errorf("a region named exactly \".text\" must not be blocked")
	}
	if !b.Empty() {
		t.Errorf("expected no retained regions")
	}
}

func TestBuildEmptyRegions(t *testing.T) {
	b := Build(nil)
	if !b.Empty() {
		t.Errorf("expected Empty() for no regions")
	}
	if b.Blocked(0x1000) {
		t.Errorf("nothing should be blocked")
	}
}

func TestBuildCoalescesOverlapping(t *testing.T) {
	b := Build([]NamedRegion{
		fakeRegion{".text.a", 0x1000, 0x10},
		fakeRegion{".text.b", 0x1008, 0x10},
	})
	if len(b.intervals) != 1 {
		t.Fatalf("expected intervals to coalesce into 1, got %d", len(b.intervals))
	}
	if !b.Blocked(0x1015) {
		t.Errorf("expected 0x1015 to be blocked by the merged interval")
	}
}
