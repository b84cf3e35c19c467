// Command periph runs the probe on a Linux board: the bus on two GPIO lines,
// the host link on a serial port.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"i2cprobe/binmode"
	"i2cprobe/bitbang"
	"i2cprobe/config"
	"i2cprobe/core"
	"i2cprobe/host/serial"
	"i2cprobe/protocol"
	"i2cprobe/sniffer"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	configPath = flag.String("config", "i2cprobe.json", "Probe configuration file")
	sniffText  = flag.Bool("sniff", false, "Run the text sniffer on the link instead of binary mode")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	data, err := os.ReadFile(*configPath)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(data)
	if err != nil {
		return err
	}
	s, err := cfg.Session()
	if err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}

	scl, err := pin("scl", cfg.Pins.SCL)
	if err != nil {
		return err
	}
	sda, err := pin("sda", cfg.Pins.SDA)
	if err != nil {
		return err
	}

	// The monitor snapshots the idle lines before the master takes them.
	mon, err := sniffer.NewPinMonitor(scl, sda)
	if err != nil {
		return err
	}

	var notify core.Notifier = core.Discard
	if cfg.Warnings {
		notify = &core.WriterNotifier{W: os.Stderr, Verbose: *verbose}
	}
	eng, err := core.New(s, core.Backends{Software: bitbang.New(scl, sda)}, notify)
	if err != nil {
		return fmt.Errorf("%s mode: %w", s.Mode, err)
	}
	if err := eng.Configure(); err != nil {
		return err
	}
	defer eng.Release()

	if s.Target == core.Secondary {
		wp, err := optionalPin(cfg.Pins.WP)
		if err != nil {
			return err
		}
		if err := eng.SelectEEPROM(wp); err != nil {
			return err
		}
	}

	periph, err := peripherals(cfg)
	if err != nil {
		return err
	}

	port, err := serial.Open(&serial.Config{
		Device:      cfg.Link.Device,
		Baud:        cfg.Link.Baud,
		ReadTimeout: serial.DefaultConfig(cfg.Link.Device).ReadTimeout,
	})
	if err != nil {
		return err
	}
	link := protocol.NewLink(port)
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Reads on the link block; closing it is what unblocks them.
	go func() {
		<-ctx.Done()
		link.Close()
	}()

	fmt.Printf("i2cprobe %s: %s on %s, %s\n", protocol.Version, eng.Settings(), port, s)

	if *sniffText {
		fmt.Println("Sniffer running, any key on the link stops it")
		err := sniffer.Sniff(ctx, eng, &sniffer.Sniffer{Lines: mon, Link: link, Framing: sniffer.Text})
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	in := binmode.New(eng, link, binmode.Options{Peripherals: periph, Lines: mon})
	for {
		err := in.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		if *verbose {
			fmt.Println("Host left binary mode")
		}
	}
}

func pin(role, name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, fmt.Errorf("pins.%s is not set", role)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no GPIO named %q for %s", name, role)
	}
	return p, nil
}

// optionalPin returns nil for an empty name.
func optionalPin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, nil
	}
	return pin("pin", name)
}

func peripherals(cfg *config.ProbeConfig) (binmode.Peripherals, error) {
	var b binmode.PinPeripherals
	var err error
	for _, l := range []struct {
		dst  *gpio.PinIO
		name string
	}{
		{&b.Power, cfg.Pins.Power},
		{&b.Pullup, cfg.Pins.Pullup},
		{&b.Aux, cfg.Pins.AUX},
		{&b.CS, cfg.Pins.CS},
	} {
		if *l.dst, err = optionalPin(l.name); err != nil {
			return nil, err
		}
	}
	if cfg.Board != "v4" || cfg.Pins.Pullup3V3 == "" || cfg.Pins.Pullup5V == "" {
		return &b, nil
	}
	v4 := &binmode.PullupSelect{PinPeripherals: b}
	if v4.V3V3, err = pin("pullup_3v3", cfg.Pins.Pullup3V3); err != nil {
		return nil, err
	}
	if v4.V5, err = pin("pullup_5v", cfg.Pins.Pullup5V); err != nil {
		return nil, err
	}
	return v4, nil
}
