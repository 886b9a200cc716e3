package report

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// HostPlatform describes the operating system for the session header.
func HostPlatform() string {
	info, err := host.Info()
	if err != nil || info == nil {
		return runtime.GOOS + "/" + runtime.GOARCH
	}

	parts := []string{info.OS}
	if info.Platform != "" {
		parts = append(parts, info.Platform, info.PlatformVersion)
	}
	if info.KernelVersion != "" {
		parts = append(parts, "kernel "+info.KernelVersion)
	}

	return fmt.Sprintf("%s (%s)", strings.Join(strings.Fields(strings.Join(parts, " ")), " "), info.KernelArch)
}
