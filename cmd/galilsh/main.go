package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"UCLA-Rocket-Project/GALIL/internal/bench"
	"UCLA-Rocket-Project/GALIL/internal/config"
	"UCLA-Rocket-Project/GALIL/internal/gclib"
	"UCLA-Rocket-Project/GALIL/internal/globals"
	"UCLA-Rocket-Project/GALIL/internal/history"
	"UCLA-Rocket-Project/GALIL/internal/logger"
	"UCLA-Rocket-Project/GALIL/internal/simulator"
	"UCLA-Rocket-Project/GALIL/internal/tester"

	"github.com/abiosoft/ishell/v2"
	"go.uber.org/zap"
)

const DEFAULT_WATCH = 10 * time.Second
const DEFAULT_HISTORY = 10
const VERSION_BUF_SIZE = 128

func main() {
	configPath := flag.String("config", "", "YAML config file")
	sim := flag.Bool("sim", false, "read outputs back from a simulator")
	addr := flag.String("addr", "", `controller address, e.g. "192.168.0.40 -d"`)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "sim" {
			cfg.Simulator = *sim
		}
	})
	if *addr != "" {
		cfg.Addresses = []string{*addr}
	}

	// the shell owns the terminal, logs only go to the file
	log, err := logger.NewLogger(cfg.LogFile, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	store, err := history.Open(cfg.HistoryFile, log)
	if err != nil {
		return err
	}
	defer store.Close()

	b, err := bench.Open(cfg, gclib.Default(log), log)
	if err != nil {
		return err
	}
	defer b.Close()

	if len(b.Targets()) == 0 {
		return fmt.Errorf("no controller address; pass -addr or set addresses in the config")
	}
	target := b.Targets()[0]

	ts, err := b.Connect(target)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer ts.Close()

	shell := ishell.New()
	shell.Println("Galil shell, connected to " + target)
	addCommands(shell, b, ts, store)
	shell.Run()
	return nil
}

func parseBit(arg string) (int, error) {
	bit, err := strconv.Atoi(arg)
	if err != nil || bit < 0 || bit >= globals.DIGITAL_BITS {
		return 0, fmt.Errorf("bit must be 0-%d", globals.DIGITAL_BITS-1)
	}
	return bit, nil
}

func parseChannel(arg string) (int, error) {
	channel, err := strconv.Atoi(arg)
	if err != nil || channel < 0 || channel >= globals.ANALOG_CHANNELS {
		return 0, fmt.Errorf("channel must be 0-%d", globals.ANALOG_CHANNELS-1)
	}
	return channel, nil
}

func formatBits(bits []bool) string {
	var sb strings.Builder
	for i, on := range bits {
		if i > 0 && i%globals.BITS_PER_BANK == 0 {
			sb.WriteByte(' ')
		}
		if on {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func addCommands(shell *ishell.Shell, b *bench.Bench, ts *tester.Tester, store *history.Store) {
	gl := ts.Galil()

	shell.AddCmd(&ishell.Cmd{
		Name: "cmd",
		Help: "cmd <galil command>",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Println("usage: cmd <galil command>")
				return
			}
			resp, err := gl.Command(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				if gclib.Code(err) == gclib.G_BAD_RESPONSE_QUESTION_MARK {
					if reason, err := gl.LastError(); err == nil {
						c.Println("TC1: " + reason)
					}
				}
				return
			}
			c.Println(resp)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "info",
		Help: "describe the connection",
		Func: func(c *ishell.Context) {
			c.Println(gl.String())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "version",
		Help: "gclib version",
		Func: func(c *ishell.Context) {
			buf := make([]byte, VERSION_BUF_SIZE)
			if err := gl.Functions().GVersion(buf); err != nil {
				c.Err(err)
				return
			}
			c.Println(gclib.BufferString(buf))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "dout",
		Help: "dout [bit [0|1]]  read or set digital outputs",
		Func: func(c *ishell.Context) {
			switch len(c.Args) {
			case 0:
				bits := make([]bool, globals.DIGITAL_BITS)
				for bit := range bits {
					on, err := gl.Functions().GetDigitalOutput(bit)
					if err != nil {
						c.Err(err)
						return
					}
					bits[bit] = on
				}
				c.Println(formatBits(bits))
			case 1, 2:
				bit, err := parseBit(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				if len(c.Args) == 2 {
					if err := gl.DigitalBitOutput(bit, c.Args[1] != "0"); err != nil {
						c.Err(err)
						return
					}
				}
				on, err := gl.Functions().GetDigitalOutput(bit)
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("output %d: %v\n", bit, on)
			default:
				c.Println("usage: dout [bit [0|1]]")
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "din",
		Help: "din [bit]  read digital inputs",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				word, err := gl.DigitalInput()
				if err != nil {
					c.Err(err)
					return
				}
				bits := make([]bool, globals.DIGITAL_BITS)
				for bit := range bits {
					bits[bit] = word&(1<<bit) != 0
				}
				c.Println(formatBits(bits))
				return
			}
			bit, err := parseBit(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			on, err := gl.DigitalBitInput(bit)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("input %d: %v\n", bit, on)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "aout",
		Help: "aout <channel> [volts]  read or set an analog output",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 || len(c.Args) > 2 {
				c.Println("usage: aout <channel> [volts]")
				return
			}
			channel, err := parseChannel(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) == 2 {
				volts, err := strconv.ParseFloat(c.Args[1], 64)
				if err != nil {
					c.Err(err)
					return
				}
				if err := gl.AnalogOutput(channel, volts); err != nil {
					c.Err(err)
					return
				}
			}
			v, err := gl.Functions().GetAnalogOutput(channel)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("output %d: %.4f V\n", channel, v)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "ain",
		Help: "ain <channel>  read an analog input",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("usage: ain <channel>")
				return
			}
			channel, err := parseChannel(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			v, err := gl.AnalogInput(channel)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("input %d: %.4f V\n", channel, v)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "watch",
		Help: "watch [seconds]  print simulator state changes",
		Func: func(c *ishell.Context) {
			d := DEFAULT_WATCH
			if len(c.Args) > 0 {
				secs, err := strconv.Atoi(c.Args[0])
				if err != nil || secs <= 0 {
					c.Println("usage: watch [seconds]")
					return
				}
				d = time.Duration(secs) * time.Second
			}

			ctx, cancel := context.WithTimeout(context.Background(), d)
			defer cancel()
			err := b.Watch(ctx, func(s simulator.State) {
				c.Printf("%s  out %s  in %s  ao %v\n",
					time.Now().Format("15:04:05.000"),
					formatBits(s.DigitalOutputs[:]),
					formatBits(s.DigitalInputs[:]),
					s.AnalogOutputs,
				)
			})
			if err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "run",
		Help: "run every test group and save the report",
		Func: func(c *ishell.Context) {
			ts.SetOutput(os.Stdout)
			report := ts.RunTests()
			c.Print(report.String())
			if _, err := store.Save(report); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "history",
		Help: "history [n]  list recent test runs",
		Func: func(c *ishell.Context) {
			n := DEFAULT_HISTORY
			if len(c.Args) > 0 {
				v, err := strconv.Atoi(c.Args[0])
				if err != nil || v <= 0 {
					c.Println("usage: history [n]")
					return
				}
				n = v
			}

			runs, err := store.Recent(n)
			if err != nil {
				c.Err(err)
				return
			}
			for _, r := range runs {
				result := "PASS"
				if !r.Passed {
					result = "FAIL " + r.Report.Failure.Error()
				}
				c.Printf("%4d  %s  %-24s %s\n", r.ID, r.Started.Format(time.RFC3339), r.Target, result)
			}
		},
	})
}
