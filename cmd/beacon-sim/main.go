// Command beacon-sim runs the temperature beacon against simulated
// peripherals, interactively or from a script.
package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/google/shlex"

	"tempbeacon-go/services/config"
	"tempbeacon-go/x/logx"
)

var (
	device     = flag.String("device", "sim", "Embedded config to load.")
	deciF      = flag.Int("temp", 725, "Initial sensor temperature in tenths of °F.")
	nacks      = flag.Int("nacks", 3, "Read attempts the sensor NACKs per conversion.")
	scriptPath = flag.String("script", "", "Run commands from `file`, one per line, then exit.")
	evalOnly   = flag.Bool("e", false, "Run the command given as arguments, no interactive shell.")
	logJSON    = flag.Bool("json", false, "Log in JSON.")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*device)
	if err != nil {
		log.Fatalln(err)
	}
	format := logx.Text
	if *logJSON || cfg.Log.Format == "json" {
		format = logx.JSON
	}
	logx.SetOutput(os.Stderr, format)
	logx.SetLevel(logx.ParseLevel(cfg.Log.Level))

	b := newBoard(cfg, int32(*deciF), *nacks)

	sh := ishell.New()
	sh.Set(boardKey, b)
	sh.SetPrompt("beacon > ")
	for _, cmd := range commands {
		sh.AddCmd(cmd)
	}

	b.open()
	for _, l := range b.peer.Lines() {
		sh.Print("peer< " + l)
	}

	switch {
	case *scriptPath != "":
		if err := runScript(sh, *scriptPath); err != nil {
			log.Fatalln(err)
		}
	case flag.NArg() > 0:
		if err := sh.Process(flag.Args()...); err != nil {
			log.Fatalln(err)
		}
	case *evalOnly:
		log.Fatalln("command expected")
	default:
		sh.Run()
	}
	if f := b.takeFaults(); len(f) > 0 {
		log.Fatalln(f[0])
	}
}

// runScript processes each non-blank, non-comment line of path as one
// shell command.
func runScript(sh *ishell.Shell, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			return err
		}
		if err := sh.Process(args...); err != nil {
			return err
		}
	}
	return sc.Err()
}
