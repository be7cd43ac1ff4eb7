package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/humidity.report/internal/config"
	"github.com/banshee-data/humidity.report/internal/serialport"
	"github.com/banshee-data/humidity.report/internal/timeutil"
	"github.com/banshee-data/humidity.report/internal/version"
)

// settings is the resolved configuration: config file values overridden by
// any flag given explicitly on the command line.
type settings struct {
	Port         string
	Serial       serialport.PortOptions
	PollInterval time.Duration
	ReadTimeout  time.Duration
	SettleDelay  time.Duration
	OutputDir    string
	Listen       string
	DBPath       string
	SavePNG      bool
	Dev          bool
}

type cliFlags struct {
	configPath *string
	port       *string
	baud       *int
	interval   *time.Duration
	out        *string
	listen     *string
	dbPath     *string
	savePNG    *bool
	dev        *bool
	listPorts  *bool
	version    *bool
}

func newFlagSet(name string) (*flag.FlagSet, *cliFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	f := &cliFlags{
		configPath: fs.String("config", "", "Path to a JSON config file"),
		port:       fs.String("port", config.DefaultSerialPort, "Serial port to use (ignored in dev mode)"),
		baud:       fs.Int("baud", config.DefaultBaudRate, "Serial baud rate"),
		interval:   fs.Duration("interval", config.DefaultPollIntervalMs*time.Millisecond, "Poll interval"),
		out:        fs.String("out", config.DefaultOutputDirectory, "Directory for CSV logs and plot snapshots"),
		listen:     fs.String("listen", config.DefaultListen, "Live view listen address (empty to disable)"),
		dbPath:     fs.String("db", "", "SQLite database to mirror samples into (empty to disable)"),
		savePNG:    fs.Bool("save-png", true, "Save a PNG of the plot next to the CSV log on exit"),
		dev:        fs.Bool("dev", false, "Use a simulated DHT11 instead of a serial port"),
		listPorts:  fs.Bool("list-ports", false, "List available serial ports and exit"),
		version:    fs.Bool("version", false, "Print version and exit"),
	}
	return fs, f
}

// resolve layers explicitly set flags over the config file, which in turn
// overrides the defaults.
func resolve(fs *flag.FlagSet, f *cliFlags) (settings, error) {
	cfg := &config.Config{}
	if *f.configPath != "" {
		loaded, err := config.LoadConfig(*f.configPath)
		if err != nil {
			return settings{}, err
		}
		cfg = loaded
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "port":
			cfg.SerialPort = f.port
		case "baud":
			cfg.BaudRate = f.baud
		case "interval":
			ms := int(f.interval.Milliseconds())
			cfg.PollIntervalMs = &ms
		case "out":
			cfg.OutputDirectory = f.out
		case "listen":
			cfg.Listen = f.listen
		case "db":
			cfg.DBPath = f.dbPath
		case "save-png":
			cfg.SavePNG = f.savePNG
		case "dev":
			cfg.Dev = f.dev
		}
	})
	if err := cfg.Validate(); err != nil {
		return settings{}, fmt.Errorf("invalid configuration: %w", err)
	}

	st := settings{
		Port: cfg.GetSerialPort(),
		Serial: serialport.PortOptions{
			BaudRate: cfg.GetBaudRate(),
			DataBits: cfg.GetDataBits(),
			StopBits: cfg.GetStopBits(),
			Parity:   cfg.GetParity(),
		},
		PollInterval: cfg.GetPollInterval(),
		ReadTimeout:  cfg.GetReadTimeout(),
		SettleDelay:  cfg.GetSettleDelay(),
		OutputDir:    cfg.GetOutputDirectory(),
		Listen:       cfg.GetListen(),
		DBPath:       cfg.GetDBPath(),
		SavePNG:      cfg.GetSavePNG(),
		Dev:          cfg.GetDev(),
	}
	if _, err := st.Serial.Normalize(); err != nil {
		return settings{}, err
	}
	if st.Dev {
		st.Port = "simulated"
		st.SettleDelay = 0
	}
	return st, nil
}

func main() {
	fs, f := newFlagSet(os.Args[0])
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	if *f.version {
		fmt.Println(version.String())
		return
	}

	if *f.listPorts {
		ports, err := serialport.ListPorts()
		if err != nil {
			log.Fatalf("%v", err)
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found.")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	st, err := resolve(fs, f)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := deps{Factory: serialport.RealFactory{}, Clock: timeutil.RealClock{}}
	if st.Dev {
		d.Factory = serialport.SimulatedFactory(d.Clock, uint64(time.Now().UnixNano()))
	}

	if err := run(ctx, st, d); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
