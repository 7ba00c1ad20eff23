package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"
)

// Active scanning so scan responses carry the local name.
var scanParams = cmd.LESetScanParameters{
	LEScanType:           0x01,   // active
	LEScanInterval:       0x0004, // N * 0.625msec
	LEScanWindow:         0x0004,
	OwnAddressType:       0x00,
	ScanningFilterPolicy: 0x00,
}

func newDevice(adapter int) (ble.Device, error) {
	dev, err := linux.NewDevice(ble.OptDeviceID(adapter), ble.OptScanParams(scanParams))
	if err != nil {
		return nil, err
	}
	return dev, nil
}
