//go:build rp2040 || rp2350

package sleep

import (
	"context"

	"device/arm"
)

// WFI halts the core until the next interrupt. The rp2 parts have no EMx
// modes of their own, so every depth below EM0 maps to wait-for-interrupt.
type WFI struct{}

func (WFI) Sleep(ctx context.Context, d Depth) {
	if ctx.Err() != nil {
		return
	}
	arm.Asm("wfi")
}
