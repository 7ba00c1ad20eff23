// Package headset drives one BLE biosignal headset through its lifecycle:
// discovery, connection, pairing, notification subscription, streaming
// commands and teardown. A Client is parameterised by a catalog.Profile, so
// every supported model shares the same state machine.
//
// Every operation reports a *status.Error; status.CodeOf yields the integer
// code and status.IsBenign tells informational outcomes (AlreadyPaired,
// NoData) from failures.
package headset
