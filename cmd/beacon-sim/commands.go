package main

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"tempbeacon-go/services/beacon"
	"tempbeacon-go/sleep"
	"tempbeacon-go/x/conv"
)

const boardKey = "$board"

var (
	commands = []*ishell.Cmd{
		&TickCmd,
		&WriteCmd,
		&TempCmd,
		&StatusCmd,
		&ResetCmd,
		&RunCmd,
		&RebootCmd,
	}

	errArgs = errors.New("bad arguments")
)

func boardFrom(c *ishell.Context) *board {
	return c.Get(boardKey).(*board)
}

// flush prints what the peer received and any faults since the last
// command.
func flush(c *ishell.Context, b *board) {
	for _, l := range b.peer.Lines() {
		c.Print("peer< " + l)
	}
	for _, f := range b.takeFaults() {
		c.Err(f)
	}
}

func intArg(c *ishell.Context, i, def int) (int, error) {
	if len(c.Args) <= i {
		return def, nil
	}
	n, err := strconv.Atoi(c.Args[i])
	if err != nil {
		return 0, errArgs
	}
	return n, nil
}

var (
	// TickCmd fires timer underflows.
	TickCmd = ishell.Cmd{
		Name:    "tick",
		Aliases: []string{"t"},
		Help:    "[N] fire N timer underflows (default 1)",
		Func: func(c *ishell.Context) {
			b := boardFrom(c)
			n, err := intArg(c, 0, 1)
			if err != nil || n < 1 {
				c.Err(errArgs)
				return
			}
			if fired := b.tick(n); fired < n {
				c.Println("timer stopped after", fired, "underflows")
			}
			flush(c, b)
		},
	}

	// WriteCmd queues a line of application text.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "TEXT... queue a line on the link",
		Func: func(c *ishell.Context) {
			b := boardFrom(c)
			if len(c.Args) == 0 {
				c.Err(errArgs)
				return
			}
			if err := b.svc.Write(strings.Join(c.Args, " ") + "\n"); err != nil {
				c.Err(err)
				return
			}
			b.pump()
			flush(c, b)
		},
	}

	// TempCmd sets the simulated temperature.
	TempCmd = ishell.Cmd{
		Name: "temp",
		Help: "DEG_F set the sensor temperature, e.g. temp 72.5",
		Func: func(c *ishell.Context) {
			b := boardFrom(c)
			if len(c.Args) != 1 {
				c.Err(errArgs)
				return
			}
			f, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil {
				c.Err(errArgs)
				return
			}
			b.sensor.SetDeciF(int32(math.Round(f * 10)))
		},
	}

	// StatusCmd prints counters and engine state.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Func: func(c *ishell.Context) {
			b := boardFrom(c)
			st := b.svc.Stats()
			var num [20]byte
			var hex [8]byte

			c.Println("booted:   ", st.Booted)
			c.Println("readings: ", string(conv.Itoa(num[:], int64(st.Readings))),
				"skipped", st.Skipped, "dropped", st.Dropped)
			last := strings.TrimSuffix(formatLast(st.LastDeciF, st.Readings), "\n")
			if st.Readings > 0 {
				last = string(conv.AppendDeci([]byte(last+" / "), int64(b.svc.Sensor().DeciCelsius()))) + " C"
			}
			c.Println("last:     ", last)
			c.Println("raw:       0x" + string(conv.U32Hex(hex[:], b.svc.Sensor().Raw())))
			c.Println("alarm:    ", st.Alarm, "led changes", b.led.Changes())
			c.Println("bus:      ", b.svc.BusEngine().State(), "busy", b.svc.BusEngine().Busy())
			c.Println("link:     ", b.svc.LinkEngine().State(), "busy", b.svc.LinkEngine().Busy())
			c.Println("queue:    ", b.svc.QueueFree(), "bytes free")
			counts := b.svc.Arbiter().Counts()
			var blocks []string
			for d := sleep.EM0; d < sleep.NumDepths; d++ {
				blocks = append(blocks, d.String()+"="+string(conv.Itoa(num[:], int64(counts[d]))))
			}
			c.Println("blocks:   ", strings.Join(blocks, " "), "target", b.svc.Arbiter().Target())
			entries := b.core.Entries()
			var sleeps []string
			for d := sleep.EM0; d < sleep.NumDepths; d++ {
				sleeps = append(sleeps, d.String()+"="+string(conv.Itoa(num[:], int64(entries[d]))))
			}
			c.Println("sleeps:   ", strings.Join(sleeps, " "))
			nacks, starts := b.bus.Stats()
			c.Println("i2c:      ", starts, "starts", nacks, "nacks")
		},
	}

	// ResetCmd forces the sensor bus idle.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "reset the sensor bus",
		Func: func(c *ishell.Context) {
			b := boardFrom(c)
			b.svc.ResetBus()
			b.pump()
			flush(c, b)
		},
	}

	// RunCmd free-runs the board.
	RunCmd = ishell.Cmd{
		Name:    "run",
		Aliases: []string{"r"},
		Help:    "DURATION free-run with real timers, e.g. run 3s",
		Func: func(c *ishell.Context) {
			b := boardFrom(c)
			d := 3 * time.Second
			if len(c.Args) > 0 {
				var err error
				if d, err = time.ParseDuration(c.Args[0]); err != nil || d <= 0 {
					c.Err(errArgs)
					return
				}
			}
			if err := b.run(context.Background(), d); err != nil {
				c.Err(err)
			}
			flush(c, b)
		},
	}

	// RebootCmd reopens the service and steps through boot again.
	RebootCmd = ishell.Cmd{
		Name: "reboot",
		Help: "reopen the service and run boot",
		Func: func(c *ishell.Context) {
			b := boardFrom(c)
			b.open()
			flush(c, b)
		},
	}
)

func formatLast(deciF int32, readings int) string {
	if readings == 0 {
		return "none"
	}
	return strings.TrimPrefix(beacon.FormatReading(deciF), "Temp = ")
}
