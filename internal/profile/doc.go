// Package profile models target devices and their encoding presets.
//
// Devices are loaded from JSON files found in the configured preset
// directories; the file name (without .json) becomes the device id. A device
// owns a set of named presets, each describing an output container plus
// optional video and audio codec settings with inclusive capability ranges and
// an ordered list of encoder passes.
//
// Catalog lookups are pure queries. Install and Reset mutate the writable
// preset directory under an exclusive file lock and replace files atomically.
package profile
