// Package config loads settings from defaults, an optional config file,
// QLPRINT_ environment variables and command line flags, in increasing
// order of priority.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tomgalvin.uk/qlprint/internal/device"
	"tomgalvin.uk/qlprint/internal/printer"
	"tomgalvin.uk/qlprint/internal/render"
)

const EnvPrefix = "QLPRINT"

type Transport string

const (
	File   Transport = "file"
	Serial Transport = "serial"
	USB    Transport = "usb"
)

type DeviceConfig struct {
	Transport    Transport
	Path         string
	Baud         int
	USBVendor    uint16
	USBProduct   uint16
	ReadAttempts int
	ReadInterval time.Duration
}

type PrintConfig struct {
	HighResolution bool
	AutoCut        bool
	Dithering      bool
	Gamma          float64
	MaxAspect      float64
	Filter         render.Filter
	DebugOutput    string
	FontSize       int
}

type Config struct {
	Device        DeviceConfig
	Print         PrintConfig
	ServerAddress string
	// Empty when the journal is off
	JournalPath string
	JournalKeep int
	LogLevel    slog.Level
}

// flag name for every key that can be set on the command line
var flagKeys = map[string]string{
	"transport":    "device.transport",
	"device":       "device.path",
	"baud":         "device.baud",
	"usb-vendor":   "device.usb_vendor",
	"usb-product":  "device.usb_product",
	"high-res":     "print.high_resolution",
	"auto-cut":     "print.auto_cut",
	"dither":       "print.dithering",
	"gamma":        "print.gamma",
	"filter":       "print.filter",
	"debug-output": "print.debug_output",
	"font-size":    "print.font_size",
	"address":      "server.address",
	"journal":      "journal.path",
	"log-level":    "log.level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.transport", string(File))
	v.SetDefault("device.path", "/dev/usb/lp0")
	v.SetDefault("device.baud", 9600)
	v.SetDefault("device.usb_vendor", device.BrotherVendorID)
	v.SetDefault("device.usb_product", 0)
	v.SetDefault("device.read_attempts", device.DefaultReadAttempts)
	v.SetDefault("device.read_interval", device.DefaultReadInterval)

	v.SetDefault("print.high_resolution", false)
	v.SetDefault("print.auto_cut", true)
	v.SetDefault("print.dithering", true)
	v.SetDefault("print.gamma", render.DefaultGamma)
	v.SetDefault("print.max_aspect", render.DefaultMaxAspect)
	v.SetDefault("print.filter", render.Lanczos3.String())
	v.SetDefault("print.debug_output", "")
	v.SetDefault("print.font_size", 48)

	v.SetDefault("server.address", "localhost:8080")
	v.SetDefault("journal.path", "file:qlprint.db")
	v.SetDefault("journal.keep", 1000)
	v.SetDefault("log.level", "info")
}

// RegisterFlags adds every setting flag to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "config file (any format viper reads)")
	fs.String("transport", string(File), "printer transport: file, serial or usb")
	fs.StringP("device", "d", "/dev/usb/lp0", "printer device node or serial port")
	fs.Int("baud", 9600, "serial port speed")
	fs.Uint16("usb-vendor", device.BrotherVendorID, "USB vendor id")
	fs.Uint16("usb-product", 0, "USB product id, 0 for the first printer found")
	fs.Bool("high-res", false, "print at 600 dpi in the feed direction")
	fs.Bool("auto-cut", true, "cut after printing")
	fs.Bool("dither", true, "dither instead of thresholding")
	fs.Float64("gamma", render.DefaultGamma, "gamma applied before dithering")
	fs.String("filter", render.Lanczos3.String(), "resampling filter: lanczos3 or catmullrom")
	fs.String("debug-output", "", "save the processed black and white image to this PNG")
	fs.Int("font-size", 48, "default text label font size")
	fs.StringP("address", "a", "localhost:8080", "HTTP listen address")
	fs.String("journal", "file:qlprint.db", "job journal database, empty to disable")
	fs.String("log-level", "info", "debug, info, warn or error")
}

// Load reads the configuration, with any flags in fs that were set on the
// command line taking priority.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("Couldn't bind flag %s:\n%w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("Couldn't read config file:\n%w", err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Device: DeviceConfig{
			Transport:    Transport(strings.ToLower(v.GetString("device.transport"))),
			Path:         v.GetString("device.path"),
			Baud:         v.GetInt("device.baud"),
			USBVendor:    v.GetUint16("device.usb_vendor"),
			USBProduct:   v.GetUint16("device.usb_product"),
			ReadAttempts: v.GetInt("device.read_attempts"),
			ReadInterval: v.GetDuration("device.read_interval"),
		},
		Print: PrintConfig{
			HighResolution: v.GetBool("print.high_resolution"),
			AutoCut:        v.GetBool("print.auto_cut"),
			Dithering:      v.GetBool("print.dithering"),
			Gamma:          v.GetFloat64("print.gamma"),
			MaxAspect:      v.GetFloat64("print.max_aspect"),
			DebugOutput:    v.GetString("print.debug_output"),
			FontSize:       v.GetInt("print.font_size"),
		},
		ServerAddress: v.GetString("server.address"),
		JournalPath:   v.GetString("journal.path"),
		JournalKeep:   v.GetInt("journal.keep"),
	}

	switch c.Device.Transport {
	case File, Serial, USB:
	default:
		return nil, fmt.Errorf("Unknown transport %q", c.Device.Transport)
	}

	filter, err := render.ParseFilter(v.GetString("print.filter"))
	if err != nil {
		return nil, err
	}
	c.Print.Filter = filter

	if c.Print.Gamma <= 0 {
		return nil, fmt.Errorf("Gamma must be positive, got %v", c.Print.Gamma)
	}
	if c.Print.MaxAspect <= 0 {
		return nil, fmt.Errorf("Maximum aspect ratio must be positive, got %v", c.Print.MaxAspect)
	}
	if c.Print.FontSize <= 0 {
		return nil, fmt.Errorf("Font size must be positive, got %d", c.Print.FontSize)
	}
	if c.Device.ReadAttempts <= 0 {
		return nil, fmt.Errorf("Read attempts must be positive, got %d", c.Device.ReadAttempts)
	}

	if err := c.LogLevel.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return nil, fmt.Errorf("Invalid log level:\n%w", err)
	}
	return c, nil
}

func (c *Config) RenderOptions() render.Options {
	return render.Options{
		HighResolution: c.Print.HighResolution,
		Dithering:      c.Print.Dithering,
		Gamma:          c.Print.Gamma,
		MaxAspect:      c.Print.MaxAspect,
		Filter:         c.Print.Filter,
		DebugOutput:    c.Print.DebugOutput,
	}
}

func (c *Config) PrintOptions() printer.PrintOptions {
	return printer.PrintOptions{
		AutoCut:        c.Print.AutoCut,
		HighResolution: c.Print.HighResolution,
	}
}

// Opener returns a function that opens the configured printer transport.
func (c *Config) Opener(logger *slog.Logger) func() (printer.Channel, error) {
	d := c.Device
	opts := []device.Option{
		device.WithRetry(d.ReadAttempts, d.ReadInterval),
		device.WithLogger(logger),
	}
	return func() (printer.Channel, error) {
		switch d.Transport {
		case Serial:
			return device.OpenSerial(d.Path, d.Baud, opts...)
		case USB:
			return device.OpenUSB(d.USBVendor, d.USBProduct, opts...)
		default:
			return device.Open(d.Path, opts...)
		}
	}
}
