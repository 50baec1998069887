package mathx

import "testing"

func TestRoundDiv(t *testing.T) {
	cases := []struct{ n, d, want int64 }{
		{0, 10, 0},
		{14, 10, 1},
		{15, 10, 2},
		{-14, 10, -1},
		{-15, 10, -2},
		{7, 0, 0},
	}
	for _, c := range cases {
		if got := RoundDiv(c.n, c.d); got != c.want {
			t.Fatalf("RoundDiv(%d, %d) = %d, want %d", c.n, c.d, got, c.want)
		}
	}
}

func TestClampBetween(t *testing.T) {
	if got := Clamp(70000, 0, 0xFFFF); got != 0xFFFF {
		t.Fatalf("Clamp high = %d", got)
	}
	if got := Clamp(-3, 10, 0); got != 0 {
		t.Fatalf("Clamp swapped = %d", got)
	}
	if !Between(int32(725), 900, 600) || Between(int32(1200), 600, 900) {
		t.Fatal("Between")
	}
	if Abs(int32(-5)) != 5 {
		t.Fatal("Abs")
	}
}
