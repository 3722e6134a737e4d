package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gouptime/core"
	"gouptime/host/mcu"
	"gouptime/host/serial"
	"gouptime/targets/hosted"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	sim     = flag.Bool("sim", false, "Run against an in-process simulated MCU")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	fmt.Println("Uptime Host - MCU uptime clock monitor")
	fmt.Println("======================================")
	fmt.Println()

	mcuConn := mcu.NewMCU()

	if *sim {
		stop := startSimulator(mcuConn)
		defer stop()
	} else {
		fmt.Printf("Connecting to MCU on %s...\n", *device)
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		if err := mcuConn.ConnectWithConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
			os.Exit(1)
		}
	}
	defer mcuConn.Close()

	fmt.Println("Connected successfully!")

	if err := mcuConn.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	mcuConn.PrintDictionary()

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		var err error

		switch parts[0] {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "dict":
			mcuConn.PrintDictionary()

		case "raw":
			raw := mcuConn.GetDictionaryRaw()
			fmt.Printf("Raw dictionary data (%d bytes):\n%s\n", len(raw), string(raw))

		case "uptime":
			var us uint64
			if us, err = mcuConn.GetUptime(); err == nil {
				fmt.Printf("uptime: %d us (%v)\n", us, time.Duration(us)*time.Microsecond)
			}

		case "clock":
			var us uint32
			if us, err = mcuConn.GetClock(); err == nil {
				fmt.Printf("clock: %d us\n", us)
			}

		case "millis":
			var ms uint32
			if ms, err = mcuConn.GetMillis(); err == nil {
				fmt.Printf("millis: %d ms\n", ms)
			}

		case "state":
			err = printState(mcuConn.GetState())

		case "reset":
			err = printState(mcuConn.ResetClock())

		case "suspend":
			err = printState(mcuConn.Suspend())

		case "resume":
			err = printState(mcuConn.Resume())

		case "monitor":
			samples := 5
			if len(parts) > 1 {
				if samples, err = strconv.Atoi(parts[1]); err != nil || samples < 1 {
					err = fmt.Errorf("invalid sample count %q", parts[1])
					break
				}
			}
			err = monitor(mcuConn, samples)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// startSimulator runs the hosted firmware on one end of a pipe and connects
// mcuConn to the other
func startSimulator(mcuConn *mcu.MCU) func() {
	fmt.Println("Starting simulated MCU...")

	if *verbose {
		core.SetDebugWriter(func(s string) {
			fmt.Fprintln(os.Stderr, s)
		})
		core.SetDebugEnabled(true)
		core.InitAsyncDebug()
	}

	hostEnd, mcuEnd := net.Pipe()
	fw := hosted.New(mcuEnd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := fw.Run(ctx); err != nil && *verbose {
			fmt.Fprintf(os.Stderr, "simulator stopped: %v\n", err)
		}
	}()

	mcuConn.ConnectPort(serial.NopFlush(hostEnd))
	return func() {
		cancel()
		<-done
	}
}

func printState(report mcu.StateReport, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("state: %s (millis=%d)\n", report.StateName(), report.Millis)
	return nil
}

// monitor samples the MCU uptime once per second and reports its drift
// against the host clock
func monitor(mcuConn *mcu.MCU, samples int) error {
	firstMCU, err := mcuConn.GetUptime()
	if err != nil {
		return err
	}
	firstHost := time.Now()

	fmt.Printf("%8s %14s %14s %10s\n", "sample", "mcu_us", "host_us", "drift_ppm")
	for i := 1; i <= samples; i++ {
		time.Sleep(time.Second)

		nowMCU, err := mcuConn.GetUptime()
		if err != nil {
			return err
		}
		hostUs := time.Since(firstHost).Microseconds()
		mcuUs := int64(nowMCU - firstMCU)

		fmt.Printf("%8d %14d %14d %10.1f\n", i, mcuUs, hostUs, driftPPM(mcuUs, hostUs))
	}
	return nil
}

// driftPPM is how far the MCU clock ran ahead of the host, in parts per million
func driftPPM(mcuUs, hostUs int64) float64 {
	if hostUs == 0 {
		return 0
	}
	return float64(mcuUs-hostUs) * 1e6 / float64(hostUs)
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  dict           - Print dictionary summary")
	fmt.Println("  raw            - Print raw dictionary data")
	fmt.Println("  uptime         - Get 64-bit MCU uptime in microseconds")
	fmt.Println("  clock          - Get 32-bit MCU clock in microseconds")
	fmt.Println("  millis         - Get MCU millisecond counter")
	fmt.Println("  state          - Get clock lifecycle state")
	fmt.Println("  reset          - Zero the MCU uptime")
	fmt.Println("  suspend        - Freeze the MCU uptime")
	fmt.Println("  resume         - Continue the MCU uptime")
	fmt.Println("  monitor [N]    - Sample uptime N times, one second apart, and report drift")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println()
}
