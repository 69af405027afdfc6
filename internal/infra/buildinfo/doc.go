// Package buildinfo reports the version of the channelctl binary.
//
// Version, Commit and BuildTime are injected with ldflags; when they are
// left at their defaults the module and VCS build settings are used.
package buildinfo
