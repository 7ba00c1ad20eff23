package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/device"
)

// BlueZ DBus constants
const (
	bluezBus      = "org.bluez"
	bluezAdapter1 = "org.bluez.Adapter1"
	bluezDevice1  = "org.bluez.Device1"

	bluezErrAlreadyExists = "org.bluez.Error.AlreadyExists"
	bluezErrDoesNotExist  = "org.bluez.Error.DoesNotExist"
	dbusErrUnknownObject  = "org.freedesktop.DBus.Error.UnknownObject"
	dbusErrUnknownMethod  = "org.freedesktop.DBus.Error.UnknownMethod"
)

// BlueZPairer drives pairing through the BlueZ Device1 API.
type BlueZPairer struct {
	adapter string
	object  func(path dbus.ObjectPath) dbus.BusObject
	logger  *logrus.Logger
}

// NewPairer connects to the system bus. adapter is the BlueZ adapter name,
// e.g. "hci0".
func NewPairer(adapter string, logger *logrus.Logger) (device.Pairer, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if adapter == "" {
		adapter = "hci0"
	}

	// The system bus connection is shared and cached; it is never closed here.
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system DBus: %w", err)
	}

	return &BlueZPairer{
		adapter: adapter,
		object: func(path dbus.ObjectPath) dbus.BusObject {
			return conn.Object(bluezBus, path)
		},
		logger: logger,
	}, nil
}

func (p *BlueZPairer) adapterPath() dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + p.adapter)
}

func (p *BlueZPairer) devicePath(address string) dbus.ObjectPath {
	devAddr := strings.ToUpper(strings.ReplaceAll(address, ":", "_"))
	return dbus.ObjectPath(fmt.Sprintf("/org/bluez/%s/dev_%s", p.adapter, devAddr))
}

func boolProperty(obj dbus.BusObject, iface, property string) (bool, error) {
	variant, err := obj.GetProperty(iface + "." + property)
	if err != nil {
		return false, err
	}
	val, ok := variant.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s.%s has unexpected type %T", iface, property, variant.Value())
	}
	return val, nil
}

func dbusErrorName(err error) string {
	var derr dbus.Error
	if errors.As(err, &derr) {
		return derr.Name
	}
	var pderr *dbus.Error
	if errors.As(err, &pderr) && pderr != nil {
		return pderr.Name
	}
	return ""
}

// PairingInfo reports whether the device can be paired and is already paired.
// A device unknown to BlueZ is reported as not pairable.
func (p *BlueZPairer) PairingInfo(ctx context.Context, address string) (device.PairingInfo, error) {
	if err := ctx.Err(); err != nil {
		return device.PairingInfo{}, err
	}

	paired, err := boolProperty(p.object(p.devicePath(address)), bluezDevice1, "Paired")
	if err != nil {
		switch dbusErrorName(err) {
		case dbusErrUnknownObject, dbusErrUnknownMethod:
			p.logger.WithField("address", address).Debug("Device is not known to BlueZ")
			return device.PairingInfo{}, nil
		}
		return device.PairingInfo{}, fmt.Errorf("read pairing state of %s: %w", address, err)
	}

	pairable, err := boolProperty(p.object(p.adapterPath()), bluezAdapter1, "Pairable")
	if err != nil {
		return device.PairingInfo{}, fmt.Errorf("read adapter %s pairable state: %w", p.adapter, err)
	}

	return device.PairingInfo{CanPair: pairable && !paired, Paired: paired}, nil
}

// Pair pairs with the device. Pairing an already paired device succeeds.
func (p *BlueZPairer) Pair(ctx context.Context, address string) error {
	call := p.object(p.devicePath(address)).CallWithContext(ctx, bluezDevice1+".Pair", 0)
	if call.Err != nil {
		if dbusErrorName(call.Err) == bluezErrAlreadyExists {
			return nil
		}
		if errors.Is(call.Err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: BlueZ Pair for %s", device.ErrTimeout, address)
		}
		return fmt.Errorf("BlueZ Pair failed for %s: %w", address, call.Err)
	}

	p.logger.WithField("address", address).Info("Device paired")
	return nil
}

// Unpair removes the bond by removing the device from the adapter.
func (p *BlueZPairer) Unpair(ctx context.Context, address string) error {
	paired, err := boolProperty(p.object(p.devicePath(address)), bluezDevice1, "Paired")
	if err != nil {
		if dbusErrorName(err) == dbusErrUnknownObject {
			return device.ErrNotPaired
		}
		return fmt.Errorf("read pairing state of %s: %w", address, err)
	}
	if !paired {
		return device.ErrNotPaired
	}

	call := p.object(p.adapterPath()).CallWithContext(ctx, bluezAdapter1+".RemoveDevice", 0, p.devicePath(address))
	if call.Err != nil {
		if dbusErrorName(call.Err) == bluezErrDoesNotExist {
			return device.ErrNotPaired
		}
		return fmt.Errorf("BlueZ RemoveDevice failed for %s: %w", address, call.Err)
	}

	p.logger.WithField("address", address).Info("Device unpaired")
	return nil
}
