package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tempbeacon-go/services/config"
)

func simBoard(t *testing.T, deciF int32) *board {
	t.Helper()
	cfg, err := config.Load("sim")
	require.NoError(t, err)
	b := newBoard(cfg, deciF, 1)
	b.open()
	require.Empty(t, b.takeFaults())
	return b
}

func TestBoardBootAndTick(t *testing.T) {
	b := simBoard(t, 688)
	lines := b.peer.Lines()
	require.Contains(t, lines, "Passed Si7021 self-test\n")
	require.Contains(t, lines, "Course Project I2C\n")

	require.Equal(t, 3, b.tick(3))
	require.Equal(t, []string{"Temp = 68.8 F\n", "Temp = 68.8 F\n", "Temp = 68.8 F\n"}, b.peer.Lines())
	require.Equal(t, 3, b.svc.Stats().Readings)
}

func TestBoardRun(t *testing.T) {
	b := simBoard(t, 725)
	b.peer.Lines()

	require.NoError(t, b.run(context.Background(), 1200*time.Millisecond))
	require.Empty(t, b.takeFaults())
	require.GreaterOrEqual(t, b.svc.Stats().Readings, 1)

	// Synchronous stepping works again afterwards.
	b.peer.Lines()
	require.Equal(t, 1, b.tick(1))
	require.Equal(t, []string{"Temp = 72.5 F\n"}, b.peer.Lines())
}

func TestFormatLast(t *testing.T) {
	require.Equal(t, "none", formatLast(0, 0))
	require.Equal(t, "72.5 F\n", formatLast(725, 1))
}
