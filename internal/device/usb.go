package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/gousb"
)

// BrotherVendorID is the USB vendor ID of Brother Industries.
const BrotherVendorID = 0x04f9

// usbPort talks to the printer-class interface of a USB device directly,
// bypassing the kernel's usblp driver.
type usbPort struct {
	ctx   *gousb.Context
	dev   *gousb.Device
	cfg   *gousb.Config
	iface *gousb.Interface
	out   *gousb.OutEndpoint
	in    *gousb.InEndpoint
	// bounds a single bulk IN transfer, so an empty printer buffer shows up
	// as a failed read attempt rather than a hung transfer
	readTimeout func() (context.Context, context.CancelFunc)
}

func (p *usbPort) Write(data []byte) (int, error) {
	return p.out.Write(data)
}

func (p *usbPort) Read(buf []byte) (int, error) {
	ctx, cancel := p.readTimeout()
	defer cancel()
	return p.in.ReadContext(ctx, buf)
}

func (p *usbPort) Close() error {
	var errs []error
	if p.iface != nil {
		p.iface.Close()
	}
	if p.cfg != nil {
		if err := p.cfg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.dev != nil {
		if err := p.dev.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.ctx != nil {
		if err := p.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// isPrinter reports whether any interface of the device's active
// configuration is of the printer class.
func isPrinter(dev *gousb.Device) bool {
	if dev == nil {
		return false
	}
	num, err := dev.ActiveConfigNum()
	if err != nil {
		return false
	}
	cfg, ok := dev.Desc.Configs[num]
	if !ok {
		return false
	}
	for _, iface := range cfg.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == gousb.ClassPrinter {
				return true
			}
		}
	}
	return false
}

// findPrinter opens the first printer-class device matching vendor, and
// product unless product is zero.
func findPrinter(ctx *gousb.Context, vendor, product uint16) (*gousb.Device, error) {
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vendor) && (product == 0 || desc.Product == gousb.ID(product))
	})
	// OpenDevices can return devices alongside an error for the ones it
	// couldn't open
	var found *gousb.Device
	for _, dev := range devices {
		if found == nil && isPrinter(dev) {
			found = dev
			continue
		}
		dev.Close()
	}
	if found == nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no printer with vendor %04x product %04x", vendor, product)
	}
	return found, nil
}

// OpenUSB claims the printer interface of a USB printer. A zero product ID
// selects the first printer-class device from the vendor.
func OpenUSB(vendor, product uint16, opts ...Option) (*Channel, error) {
	path := fmt.Sprintf("usb:%04x:%04x", vendor, product)
	ctx := gousb.NewContext()
	p := &usbPort{ctx: ctx}

	fail := func(err error) (*Channel, error) {
		p.Close()
		return nil, &Error{Op: "open", Path: path, Err: err}
	}

	dev, err := findPrinter(ctx, vendor, product)
	if err != nil {
		return fail(err)
	}
	p.dev = dev

	if runtime.GOOS == "linux" {
		if err := dev.SetAutoDetach(true); err != nil {
			slog.Warn("Couldn't enable kernel driver auto-detach", "path", path, "error", err)
		}
	}

	num, err := dev.ActiveConfigNum()
	if err != nil {
		return fail(fmt.Errorf("failed to get active config: %w", err))
	}
	cfg, err := dev.Config(num)
	if err != nil {
		return fail(fmt.Errorf("failed to get config: %w", err))
	}
	p.cfg = cfg

	ifaceNum, altNum := -1, 0
	for _, iface := range cfg.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == gousb.ClassPrinter {
				ifaceNum, altNum = iface.Number, alt.Alternate
				break
			}
		}
		if ifaceNum >= 0 {
			break
		}
	}
	if ifaceNum < 0 {
		return fail(errors.New("no printer interface found"))
	}

	iface, err := cfg.Interface(ifaceNum, altNum)
	if err != nil {
		return fail(fmt.Errorf("failed to claim interface: %w", err))
	}
	p.iface = iface

	for _, ep := range iface.Setting.Endpoints {
		switch {
		case ep.Direction == gousb.EndpointDirectionOut && p.out == nil:
			if out, err := iface.OutEndpoint(ep.Number); err == nil {
				p.out = out
			}
		case ep.Direction == gousb.EndpointDirectionIn && p.in == nil:
			if in, err := iface.InEndpoint(ep.Number); err == nil {
				p.in = in
			}
		}
	}
	if p.out == nil || p.in == nil {
		return fail(errors.New("printer interface lacks bulk in/out endpoints"))
	}

	c := New(p, path, opts...)
	p.readTimeout = func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), c.interval)
	}
	return c, nil
}
