// Package stream holds the buffering primitives between the notification
// callback of a live headset session and its consumers.
//
// SampleQueue is the bounded overwrite-oldest FIFO drained by polling;
// RingChannel is the channel-shaped variant used for discovery events.
package stream
