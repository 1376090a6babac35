package session

import "errors"

var (
	ErrBusy             = errors.New("an operation is already in progress")
	ErrNoDeviceSelected = errors.New("no device selected")
	ErrUnknownDevice    = errors.New("device not in the last scan result")
	ErrEmptyReference   = errors.New("empty media reference")
	ErrRelayHostMissing = errors.New("relay API hostname is required")
	ErrClosed           = errors.New("session controller stopped")
)

// User facing status lines.
const (
	msgBusy           = "An operation is already in progress."
	msgIdle           = "Idle. Ready to cast."
	msgNoResponse     = "Device is idle or not responding."
	msgUnknown        = "Action sent, but status is unknown."
	msgConfirming     = "Confirming action..."
	msgRefreshing     = "Refreshing status..."
	msgChecking       = "Checking device status..."
	msgSelectDevice   = "Please select a device."
	msgNoDevice       = "No device selected."
	msgScanning       = "Scanning for devices..."
	msgNoDevicesFound = "No devices found."
	msgEnterReference = "Enter a URL or file path."
	msgEnterEnqueue   = "Enter a URL to enqueue."
	msgEnterSite      = "Enter a URL to cast as a site."
	msgRelayHost      = "Relay API hostname is required."
	msgResolving      = "Getting direct URL from relay..."
	msgRelayDiscarded = "Device changed; relay result discarded."
)
