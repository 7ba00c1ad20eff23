// Package device defines the native Bluetooth Low Energy abstractions the
// headset client is written against.
//
// The package holds:
//   - Central, Connection and Pairer interfaces implemented by the go-ble
//     adapter and by the in-process simulator
//   - typed UUID helpers built on github.com/google/uuid
//   - Client Characteristic Configuration (0x2902) encoding
//   - structured errors shared by every native implementation
package device
