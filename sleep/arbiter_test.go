package sleep

import (
	"context"
	"math/rand"
	"testing"

	"tempbeacon-go/errcode"
)

type recSleeper struct{ entered []Depth }

func (r *recSleeper) Sleep(_ context.Context, d Depth) { r.entered = append(r.entered, d) }

func newArbiter(t *testing.T) (*Arbiter, *recSleeper, *[]*errcode.E) {
	t.Helper()
	core := &recSleeper{}
	var faults []*errcode.E
	a := New(core, Options{OnFault: func(e *errcode.E) { faults = append(faults, e) }})
	a.Open()
	return a, core, &faults
}

func TestFloorWithNothingBlockedIsDeepest(t *testing.T) {
	a, _, _ := newArbiter(t)
	if got := a.CurrentFloor(); got != Deepest {
		t.Fatalf("CurrentFloor() = %v, want %v", got, Deepest)
	}
}

func TestBalancedBlockUnblockRestoresDeepest(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		a, _, faults := newArbiter(t)

		// Random interleaving of nested blocks, then unblocks in random order.
		var held []Depth
		for i := 0; i < 12; i++ {
			d := Depth(rng.Intn(NumDepths))
			if a.Counts()[d] == MaxBlocks {
				continue
			}
			a.Block(d)
			held = append(held, d)
		}
		rng.Shuffle(len(held), func(i, j int) { held[i], held[j] = held[j], held[i] })
		for _, d := range held {
			a.Unblock(d)
		}
		if got := a.CurrentFloor(); got != Deepest {
			t.Fatalf("round %d: CurrentFloor() = %v after balanced sequence", round, got)
		}
		if len(*faults) != 0 {
			t.Fatalf("round %d: unexpected faults %v", round, *faults)
		}
	}
}

func TestFloorNeverShallowerThanBlocked(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	a, _, _ := newArbiter(t)
	for i := 0; i < 500; i++ {
		d := Depth(rng.Intn(NumDepths))
		if rng.Intn(2) == 0 && a.Counts()[d] < MaxBlocks {
			a.Block(d)
		} else {
			a.Unblock(d)
		}
		floor := a.CurrentFloor()
		counts := a.Counts()
		for x := EM0; x < NumDepths; x++ {
			if counts[x] != 0 && floor > x {
				t.Fatalf("step %d: floor %v deeper than blocked %v (%v)", i, floor, x, counts)
			}
		}
	}
}

func TestBlockOverflowFaults(t *testing.T) {
	a, _, faults := newArbiter(t)
	for i := 0; i < MaxBlocks; i++ {
		a.Block(EM2)
	}
	if len(*faults) != 0 {
		t.Fatalf("faults before bound: %v", *faults)
	}
	a.Block(EM2)
	if len(*faults) != 1 || (*faults)[0].C != errcode.Exhausted {
		t.Fatalf("faults = %v, want one resource_exhausted", *faults)
	}
	if got := a.Counts()[EM2]; got != MaxBlocks {
		t.Fatalf("counter = %d, want clamped at %d", got, MaxBlocks)
	}
}

func TestUnblockAtZeroIsSilent(t *testing.T) {
	a, _, faults := newArbiter(t)
	a.Unblock(EM3)
	a.Unblock(EM3)
	if a.Counts()[EM3] != 0 || len(*faults) != 0 {
		t.Fatalf("counts=%v faults=%v", a.Counts(), *faults)
	}
}

func TestEnterLowestAvailable(t *testing.T) {
	cases := []struct {
		name    string
		block   []Depth
		want    Depth
		entered bool
	}{
		{"nothing blocked", nil, EM3, true},
		{"em0 blocked", []Depth{EM0}, EM0, false},
		{"em1 blocked", []Depth{EM1}, EM0, false},
		{"em2 blocked", []Depth{EM2}, EM1, true},
		{"em3 blocked", []Depth{EM3}, EM2, true},
		{"em4 blocked", []Depth{EM4}, EM3, true},
		{"shallowest wins", []Depth{EM3, EM2, EM4}, EM1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, core, _ := newArbiter(t)
			for _, d := range tc.block {
				a.Block(d)
			}
			got := a.EnterLowestAvailable(context.Background())
			if got != tc.want {
				t.Fatalf("EnterLowestAvailable() = %v, want %v", got, tc.want)
			}
			if tc.entered != (len(core.entered) == 1) {
				t.Fatalf("sleeper entered %v, want entered=%v", core.entered, tc.entered)
			}
			if tc.entered && core.entered[0] != tc.want {
				t.Fatalf("sleeper got %v, want %v", core.entered[0], tc.want)
			}
		})
	}
}

func TestInvalidDepth(t *testing.T) {
	a, _, faults := newArbiter(t)
	a.Block(Depth(9))
	a.Unblock(Depth(9))
	if len(*faults) != 1 || (*faults)[0].C != errcode.InvalidParams {
		t.Fatalf("faults = %v", *faults)
	}
}
