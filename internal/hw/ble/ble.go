package ble

import (
	"context"
	"time"
)

// DeviceInfo identifies a discovered peripheral.
type DeviceInfo struct {
	Name    string
	Address string
}

// NotifyFunc receives a characteristic notification payload.
type NotifyFunc func(data []byte)

// Transport defines the abstract interface for one BLE link to one device.
// This allows plugging in a real adapter implementation or an in-memory
// simulation for development on PC.
type Transport interface {
	// Discover performs a bounded scan and reports the first device whose
	// advertised name contains nameFragment (case-insensitive). The second
	// return is false when the scan completed without a match.
	Discover(ctx context.Context, nameFragment string, timeout time.Duration) (DeviceInfo, bool, error)

	// Connect establishes a link to the previously discovered device.
	Connect(ctx context.Context, timeout time.Duration) error

	// Disconnect tears down the link. Safe to call when not connected.
	Disconnect() error

	// Read reads the value of a characteristic by UUID.
	Read(char string) ([]byte, error)

	// Write writes a value to a characteristic by UUID.
	Write(char string, data []byte) error

	// Subscribe enables notifications on a characteristic.
	Subscribe(char string, fn NotifyFunc) error

	// Unsubscribe disables notifications on a characteristic.
	Unsubscribe(char string) error

	// SetDisconnectHandler registers a callback invoked when the link drops
	// for any reason other than a local Disconnect call in progress.
	SetDisconnectHandler(fn func())
}
