package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"i2cprobe/core"
	"i2cprobe/host/client"
	"i2cprobe/protocol"
	"i2cprobe/sniffer"

	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/i2c"
)

var (
	device  = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	fmt.Printf("i2cprobe host %s - binary I2C mode\n", protocol.Version)
	fmt.Println("===============================")
	fmt.Println()

	fmt.Printf("Connecting to probe on %s...\n", *device)
	c, err := client.Connect(*device, *baud)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Println("Connected successfully!")

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
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "quit", "exit", "q":
			if err := c.Exit(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "id":
			var id string
			if id, err = c.Identify(); err == nil {
				fmt.Printf("Mode: %s\n", id)
			}

		case "scan":
			var found []byte
			if found, err = c.Scan(); err == nil {
				err = core.WriteScan(os.Stdout, found)
			}

		case "start", "[":
			err = c.Start()

		case "stop", "]":
			err = c.Stop()

		case "read", "r":
			var b byte
			if b, err = c.ReadByte(); err == nil {
				fmt.Printf("READ: 0x%02X\n", b)
			}

		case "ack":
			err = c.Ack(false)

		case "nack":
			err = c.Ack(true)

		case "write", "w":
			err = write(c, args)

		case "tx":
			err = tx(c, args)

		case "speed":
			err = speed(c, args)

		case "sniff":
			err = sniff(c)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
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

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help              - Show this help message")
	fmt.Println("  id                - Print the mode identifier")
	fmt.Println("  scan              - Search the 7-bit address space")
	fmt.Println("  start / [         - Start (or repeated start) condition")
	fmt.Println("  stop / ]          - Stop condition")
	fmt.Println("  read / r          - Read one byte, ACK left pending")
	fmt.Println("  ack / nack        - Resolve the pending ACK")
	fmt.Println("  write / w B...    - Write bytes, print each ACK")
	fmt.Println("  tx ADDR [B...] [rN] - Transaction with 7-bit ADDR, reading N bytes")
	fmt.Println("  speed N           - Select speed tier (0-3)")
	fmt.Println("  sniff             - Show bus traffic until Ctrl-C")
	fmt.Println("  quit/exit/q       - Leave binary mode and exit")
	fmt.Println()
}

func parseBytes(args []string) ([]byte, error) {
	out := make([]byte, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("bad byte %q: %w", a, err)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func write(c *client.Client, args []string) error {
	data, err := parseBytes(args)
	if err != nil {
		return err
	}
	acks, err := c.Write(data)
	for i, a := range acks {
		fmt.Printf("WRITE: 0x%02X %s\n", data[i], a)
	}
	return err
}

func tx(c *client.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tx ADDR [B...] [rN]")
	}
	addr, err := strconv.ParseUint(args[0], 0, 7)
	if err != nil {
		return fmt.Errorf("bad address %q: %w", args[0], err)
	}
	args = args[1:]
	n := 0
	if len(args) > 0 && strings.HasPrefix(args[len(args)-1], "r") {
		if n, err = strconv.Atoi(args[len(args)-1][1:]); err != nil {
			return fmt.Errorf("bad read count %q", args[len(args)-1])
		}
		args = args[:len(args)-1]
	}
	w, err := parseBytes(args)
	if err != nil {
		return err
	}

	d := &i2c.Dev{Bus: c, Addr: uint16(addr)}
	r := make([]byte, n)
	if err := d.Tx(w, r); err != nil {
		return err
	}
	if *verbose {
		fmt.Printf("%s: wrote % X\n", d, w)
	}
	if n > 0 {
		fmt.Printf("READ: % X\n", r)
	}
	return nil
}

func speed(c *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: speed N")
	}
	t, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return err
	}
	if int(t) >= len(core.SoftwareSpeeds) {
		return fmt.Errorf("%w: tier %d", core.ErrSpeedRange, t)
	}
	if err := c.SetTier(core.SpeedTier(t)); err != nil {
		return err
	}
	fmt.Printf("Speed: %s\n", core.SoftwareSpeeds[t])
	return nil
}

const (
	colorStart = "\x1b[32m"
	colorStop  = "\x1b[31m"
	colorNack  = "\x1b[33m"
	colorReset = "\x1b[0m"
)

func sniff(c *client.Client) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := colorable.NewColorableStdout()
	fmt.Println("Sniffing, Ctrl-C to stop")
	err := c.Sniff(ctx, func(ev sniffer.Event) { printEvent(out, ev) })
	fmt.Fprintln(out)
	return err
}

func printEvent(w io.Writer, ev sniffer.Event) {
	switch {
	case ev.Kind == sniffer.Start:
		fmt.Fprint(w, colorStart, ev, colorReset)
	case ev.Kind == sniffer.Stop:
		fmt.Fprint(w, colorStop, ev, colorReset, "\n")
	case ev.Nack:
		fmt.Fprint(w, colorNack, ev, colorReset)
	default:
		fmt.Fprint(w, ev)
	}
}
