package ble

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/desk-tools/deskgo/internal/debug"
)

// ScannedDevice is information about one discovered BLE device.
type ScannedDevice struct {
	Name            string
	Address         string
	RSSI            int16
	ManufacturerID  uint16
	HasManufacturer bool
	DeskService     bool // advertises the desk control service
}

// IsDesk reports whether the device looks like a desk: either its name says
// so or it advertises the desk control service.
func (d ScannedDevice) IsDesk() bool {
	return d.DeskService || strings.Contains(strings.ToLower(d.Name), "desk")
}

// Scan discovers nearby BLE devices for the given duration and returns them
// sorted by signal strength, strongest first. deskServiceUUID marks devices
// advertising that service as desks.
func Scan(ctx context.Context, timeout time.Duration, deskServiceUUID string) ([]ScannedDevice, error) {
	svcUUID, err := bluetooth.ParseUUID(deskServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse desk service UUID: %w", err)
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable BLE adapter: %w", err)
	}

	var (
		devices []ScannedDevice
		index   = make(map[string]int)
	)

	timer := time.AfterFunc(timeout, func() { _ = adapter.StopScan() })
	defer timer.Stop()
	unwatch := context.AfterFunc(ctx, func() { _ = adapter.StopScan() })
	defer unwatch()

	err = adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := result.Address.String()
		d := ScannedDevice{
			Name:        result.LocalName(),
			Address:     addr,
			RSSI:        result.RSSI,
			DeskService: result.HasServiceUUID(svcUUID),
		}
		if md := result.ManufacturerData(); len(md) > 0 {
			d.ManufacturerID = md[0].CompanyID
			d.HasManufacturer = true
		}

		// A device advertises repeatedly during the window; keep the entry
		// fresh but never lose a name or service hint seen earlier.
		if i, ok := index[addr]; ok {
			if d.Name == "" {
				d.Name = devices[i].Name
			}
			d.DeskService = d.DeskService || devices[i].DeskService
			if !d.HasManufacturer && devices[i].HasManufacturer {
				d.ManufacturerID = devices[i].ManufacturerID
				d.HasManufacturer = true
			}
			devices[i] = d
			return
		}
		index[addr] = len(devices)
		devices = append(devices, d)
		debug.Trace("Scan result %s (%s, RSSI %d)", d.Name, addr, d.RSSI)
	})
	if err != nil {
		return nil, fmt.Errorf("BLE scan: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].RSSI > devices[j].RSSI
	})
	return devices, nil
}
