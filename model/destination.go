package model

// This file contains the run destination records and their conversion from
// the result bundle's action records.

import (
	"net/url"
	"strings"

	"github.com/xctools/xctools/xcresult"
)

// CPUArchitecture is the architecture of a device.
type CPUArchitecture string

const (
	ArchARM64  CPUArchitecture = "arm64"
	ArchARM64e CPUArchitecture = "arm64e"
	ArchX86_64 CPUArchitecture = "x86_64"
)

// ParseCPUArchitecture reports whether raw is one of the known architectures.
func ParseCPUArchitecture(raw string) (CPUArchitecture, bool) {
	switch a := CPUArchitecture(raw); a {
	case ArchARM64, ArchARM64e, ArchX86_64:
		return a, true
	default:
		return "", false
	}
}

// RunDestination describes where an action ran.
type RunDestination struct {
	TargetDeviceRecord  DeviceRecord `json:"targetDeviceRecord"`
	LocalComputerRecord DeviceRecord `json:"localComputerRecord"`
	TargetSDKRecord     SDKRecord    `json:"targetSDKRecord"`
}

// DeviceRecord describes a device or host computer.
type DeviceRecord struct {
	DisplayName        string          `json:"displayName"`
	TargetArchitecture CPUArchitecture `json:"targetArchitecture"`
	OSVersion          string          `json:"osVersion"`
	ModelName          string          `json:"modelName"`
	ModelCode          string          `json:"modelCode"`
	Identifier         string          `json:"identifier"`
	// Platform identifier, e.g. com.apple.platform.iphonesimulator
	PlatformIdentifier string `json:"platformIdentifier"`
	PlatformName       string `json:"platformName"`
}

type SDKRecord struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	OSVersion  string `json:"osVersion"`
}

// NewRunDestination converts a raw run destination. It returns nil when
// either device record cannot be represented.
func NewRunDestination(rec xcresult.ActionRunDestinationRecord) *RunDestination {
	target, ok := newDeviceRecord(rec.TargetDeviceRecord)
	if !ok {
		return nil
	}
	local, ok := newDeviceRecord(rec.LocalComputerRecord)
	if !ok {
		return nil
	}
	return &RunDestination{
		TargetDeviceRecord:  target,
		LocalComputerRecord: local,
		TargetSDKRecord: SDKRecord{
			Name:       rec.TargetSDKRecord.Name,
			Identifier: rec.TargetSDKRecord.Identifier,
			OSVersion:  rec.TargetSDKRecord.OperatingSystemVersion,
		},
	}
}

func newDeviceRecord(d xcresult.ActionDeviceRecord) (DeviceRecord, bool) {
	arch, ok := ParseCPUArchitecture(d.NativeArchitecture)
	if !ok {
		return DeviceRecord{}, false
	}
	if !isURI(d.PlatformRecord.Identifier) {
		return DeviceRecord{}, false
	}
	return DeviceRecord{
		DisplayName:        d.Name,
		TargetArchitecture: arch,
		OSVersion:          d.OperatingSystemVersionWithBuildNumber,
		ModelName:          d.ModelName,
		ModelCode:          d.ModelCode,
		Identifier:         d.Identifier,
		PlatformIdentifier: d.PlatformRecord.Identifier,
		PlatformName:       d.PlatformRecord.UserDescription,
	}, true
}

func isURI(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	_, err := url.Parse(s)
	return err == nil
}
