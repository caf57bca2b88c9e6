// gofet is a host-side driver and diagnostic tool for GreatFET-style USB
// test boards. It exposes the board's SPI controller through the spibus
// package and can watch the vendor-request traffic live in a TUI.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/openfet/gofet/board"
	"github.com/openfet/gofet/config"
	"github.com/openfet/gofet/logging"
	"github.com/openfet/gofet/monitor"
	"github.com/openfet/gofet/spibus"
)

const simBoardID = 0x0000000A

func main() {
	cfile := flag.String("config", "config.yml", "path to the configuration file")
	sim := flag.Bool("sim", false, "talk to a simulated board instead of USB")
	info := flag.Bool("info", false, "print the board identity and exit")
	mon := flag.Bool("monitor", false, "run the TUI bus monitor")
	writeHex := flag.String("write", "", "hex payload to send over the SPI bus")
	readLen := flag.Int("read", -1, "receive length; defaults to the payload length")
	flag.Parse()

	conf, err := config.ReadConfig(*cfile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// In monitor mode the TUI owns the terminal, so logs are staged until
	// its log pane is up.
	if err := logging.Init(conf.Logging.Level, conf.Logging.Format, conf.Logging.File, *mon); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(2)
	}
	defer logging.Close()

	brd, err := openBoard(conf, *sim)
	if err != nil {
		slog.Error("Failed to open board", "error", err)
		os.Exit(1)
	}
	defer brd.Close()

	if *info {
		if err := printInfo(brd); err != nil {
			slog.Error("Failed to read board info", "error", err)
			os.Exit(1)
		}
		return
	}

	if *mon {
		if err := runMonitor(conf, *cfile, brd, *sim); err != nil {
			slog.Error("Monitor failed", "error", err)
			os.Exit(1)
		}
		return
	}

	bus, err := newBus(conf, brd)
	if err != nil {
		slog.Error("Failed to initialise SPI bus", "error", err)
		os.Exit(1)
	}

	if *writeHex != "" || *readLen >= 0 {
		if err := runTransfer(bus, *writeHex, *readLen); err != nil {
			slog.Error("Transfer failed", "error", err)
			os.Exit(1)
		}
		return
	}

	flag.Usage()
	os.Exit(2)
}

func openBoard(conf *config.Config, sim bool) (*board.Board, error) {
	if sim {
		slog.Info("Using simulated board")
		return board.New(board.NewSimTransport(simBoardID)), nil
	}
	return board.OpenUSB(conf.USB)
}

func newBus(conf *config.Config, brd *board.Board) (*spibus.SPIBus, error) {
	cfg := spibus.DefaultConfig()
	cfg.BufferSize = conf.SPI.BufferSize
	cfg.SerialClockRate = conf.SPI.SerialClockRate
	cfg.ClockPrescaleRate = conf.SPI.ClockPrescaleRate
	return spibus.New(brd, cfg)
}

func printInfo(brd *board.Board) error {
	info, err := brd.Info()
	if err != nil {
		return err
	}
	fmt.Printf("Board ID:  %d\n", info.BoardID)
	fmt.Printf("Firmware:  %s\n", info.Version)
	fmt.Printf("Part ID:   %s\n", info.PartID)
	fmt.Printf("Serial:    %s\n", info.Serial)
	return nil
}

func runTransfer(bus *spibus.SPIBus, writeHex string, readLen int) error {
	payload, err := hex.DecodeString(strings.ReplaceAll(writeHex, " ", ""))
	if err != nil {
		return fmt.Errorf("invalid hex payload: %w", err)
	}
	n := readLen
	if n < 0 {
		n = len(payload)
	}

	result, err := bus.TransferN(payload, n)
	if err != nil {
		return err
	}
	if len(result) > 0 {
		fmt.Printf("% x\n", result)
	}
	return nil
}

func runMonitor(conf *config.Config, cfile string, brd *board.Board, sim bool) error {
	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM)

	mon := monitor.New(conf.Monitor.HistorySize, ossignal)
	brd.SetTrace(mon.Trace)

	stop := make(chan struct{})
	defer close(stop)

	// Apply runtime-safe config changes while the monitor runs.
	prev := conf
	err := config.Watch(stop, cfile, func(newConf *config.Config) {
		rt := newConf.Runtime()
		logging.SetLevel(rt.Logging.Level)
		mon.SetHistorySize(rt.Monitor.HistorySize)
		if config.RequiresRestart(prev, newConf) {
			slog.Warn("USB or SPI settings changed; restart to apply them")
		}
		prev = newConf
	})
	if err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- mon.Start()
	}()

	// The bus init happens after the trace hook is set, so the monitor
	// shows the SPI_INIT request too.
	bus, err := newBus(conf, brd)
	if err != nil {
		mon.Stop()
		<-runErr
		return err
	}

	if sim {
		go demoTraffic(stop, bus)
	}

	select {
	case <-ossignal:
		slog.Info("Shutting down monitor...")
		mon.Stop()
		return <-runErr
	case err := <-runErr:
		return err
	}
}

// demoTraffic keeps the simulated board busy so the monitor has something
// to show.
func demoTraffic(stop <-chan struct{}, bus *spibus.SPIBus) {
	dev := spibus.NewDevice(bus, "demo flash")

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var counter byte
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			counter++
			switch counter % 3 {
			case 0:
				// Equal-length exchange.
				if _, err := dev.Transfer([]byte{0x9F, counter, 0x00}); err != nil {
					slog.Error("Demo transfer failed", "error", err)
				}
			case 1:
				// Read more than written; the bus pads with zeros.
				if _, err := dev.TransferN([]byte{0x0B, counter}, 8); err != nil {
					slog.Error("Demo transfer failed", "error", err)
				}
			case 2:
				// Write-only transaction.
				if _, err := dev.TransferN([]byte{0x02, counter, 0xFF}, 0); err != nil {
					slog.Error("Demo transfer failed", "error", err)
				}
			}
		}
	}
}
