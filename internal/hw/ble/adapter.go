package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/desk-tools/deskgo/internal/debug"
)

// readBufSize is larger than any characteristic value the desk produces.
const readBufSize = 32

// Adapter is the real Transport implementation backed by the platform
// Bluetooth stack via tinygo.org/x/bluetooth.
type Adapter struct {
	adapter *bluetooth.Adapter

	mu           sync.Mutex
	found        bluetooth.ScanResult
	haveDevice   bool
	device       bluetooth.Device
	connected    bool
	chars        map[string]bluetooth.DeviceCharacteristic
	onDisconnect func()
}

// NewAdapter enables the default Bluetooth adapter and returns a Transport
// bound to it.
func NewAdapter() (*Adapter, error) {
	debug.Info("Initializing BLE adapter")

	a := &Adapter{
		adapter: bluetooth.DefaultAdapter,
		chars:   make(map[string]bluetooth.DeviceCharacteristic),
	}
	if err := a.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable BLE adapter: %w (is Bluetooth available?)", err)
	}

	a.adapter.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		if connected {
			return
		}
		a.mu.Lock()
		was := a.connected
		a.connected = false
		fn := a.onDisconnect
		a.mu.Unlock()
		if was && fn != nil {
			fn()
		}
	})

	return a, nil
}

func (a *Adapter) SetDisconnectHandler(fn func()) {
	a.mu.Lock()
	a.onDisconnect = fn
	a.mu.Unlock()
}

func (a *Adapter) Discover(ctx context.Context, nameFragment string, timeout time.Duration) (DeviceInfo, bool, error) {
	debug.Trace("Scan start (fragment=%q timeout=%v)", nameFragment, timeout)

	fragment := strings.ToLower(nameFragment)
	matched := false

	// Scan blocks until StopScan; bound it by both the timeout and the
	// caller's context.
	timer := time.AfterFunc(timeout, func() { _ = a.adapter.StopScan() })
	defer timer.Stop()
	unwatch := context.AfterFunc(ctx, func() { _ = a.adapter.StopScan() })
	defer unwatch()

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		name := result.LocalName()
		if name == "" || !strings.Contains(strings.ToLower(name), fragment) {
			return
		}
		a.mu.Lock()
		a.found = result
		a.haveDevice = true
		a.mu.Unlock()
		matched = true
		_ = adapter.StopScan()
	})
	if err != nil {
		return DeviceInfo{}, false, fmt.Errorf("BLE scan: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return DeviceInfo{}, false, err
	}
	if !matched {
		return DeviceInfo{}, false, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	info := DeviceInfo{Name: a.found.LocalName(), Address: a.found.Address.String()}
	debug.Trace("Scan matched %s (%s, RSSI %d)", info.Name, info.Address, a.found.RSSI)
	return info, true, nil
}

func (a *Adapter) Connect(ctx context.Context, timeout time.Duration) error {
	a.mu.Lock()
	if !a.haveDevice {
		a.mu.Unlock()
		return fmt.Errorf("no device discovered")
	}
	addr := a.found.Address
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	dev, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(timeout),
	})
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr.String(), err)
	}

	// Enumerate everything once; the desk exposes few services and lookups
	// afterwards are by UUID string.
	services, err := dev.DiscoverServices(nil)
	if err != nil {
		_ = dev.Disconnect()
		return fmt.Errorf("discover services: %w", err)
	}
	chars := make(map[string]bluetooth.DeviceCharacteristic)
	for _, svc := range services {
		debug.GATT("Service", svc.UUID().String(), nil)
		cc, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			debug.Verbose("discover characteristics for %s: %v", svc.UUID().String(), err)
			continue
		}
		for _, c := range cc {
			debug.GATT("Characteristic", c.UUID().String(), nil)
			chars[strings.ToLower(c.UUID().String())] = c
		}
	}

	a.mu.Lock()
	a.device = dev
	a.chars = chars
	a.connected = true
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	connected := a.connected
	a.connected = false
	dev := a.device
	a.mu.Unlock()

	if !connected {
		return nil
	}
	debug.Trace("Disconnecting")
	return dev.Disconnect()
}

func (a *Adapter) characteristic(char string) (bluetooth.DeviceCharacteristic, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("not connected")
	}
	c, ok := a.chars[strings.ToLower(char)]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not found on device", char)
	}
	return c, nil
}

func (a *Adapter) Read(char string) ([]byte, error) {
	c, err := a.characteristic(char)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, readBufSize)
	n, err := c.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", char, err)
	}
	debug.GATT("Read", char, buf[:n])
	return buf[:n], nil
}

func (a *Adapter) Write(char string, data []byte) error {
	c, err := a.characteristic(char)
	if err != nil {
		return err
	}
	debug.GATT("Write", char, data)
	// WriteWithoutResponse is the only write available on every backend,
	// and the desk's command characteristic accepts it.
	if _, err := c.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("write %s: %w", char, err)
	}
	return nil
}

func (a *Adapter) Subscribe(char string, fn NotifyFunc) error {
	c, err := a.characteristic(char)
	if err != nil {
		return err
	}
	debug.GATT("Subscribe", char, nil)
	return c.EnableNotifications(func(buf []byte) {
		// The stack may reuse the buffer; hand out a copy.
		fn(append([]byte(nil), buf...))
	})
}

func (a *Adapter) Unsubscribe(char string) error {
	c, err := a.characteristic(char)
	if err != nil {
		return err
	}
	debug.GATT("Unsubscribe", char, nil)
	return c.EnableNotifications(nil)
}
