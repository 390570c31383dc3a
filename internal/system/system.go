// Package system 提供主机信息获取功能
package system

import (
	"bufio"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/cache"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/config"
	"github.com/AnalyseDeCircuit/gpu-detect/pkg/types"
	"github.com/shirou/gopsutil/v3/host"
)

const hostInfoTTL = time.Minute

var hostCache = cache.New[string, *types.HostInfo]()

// hostInfoStat is host.Info unless replaced in tests.
var hostInfoStat = host.Info

// HostInfo 返回主机信息，结果缓存一分钟
func HostInfo() (*types.HostInfo, error) {
	return hostCache.GetOrLoad("host", hostInfoTTL, loadHostInfo)
}

func loadHostInfo() (*types.HostInfo, error) {
	info, err := hostInfoStat()
	if err != nil {
		return nil, err
	}
	out := &types.HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		KernelArch:      info.KernelArch,
		Virtualization:  info.VirtualizationSystem,
		Uptime:          info.Uptime,
	}
	if out.Hostname == "" {
		out.Hostname = getHostname()
	}
	if out.OS == "" {
		out.OS = runtime.GOOS
	}
	if out.Platform == "" {
		out.Platform, out.PlatformVersion = osRelease([]string{
			config.HostPath("/etc/os-release"),
			"/etc/os-release",
		})
	}
	return out, nil
}

func getHostname() string {
	name, _ := os.Hostname()
	if name == "" {
		name = "Unknown"
	}
	return name
}

// osRelease returns NAME and VERSION from the first readable os-release.
func osRelease(paths []string) (name, version string) {
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "NAME=") {
				name = strings.Trim(strings.TrimPrefix(line, "NAME="), `"`)
			} else if strings.HasPrefix(line, "VERSION=") {
				version = strings.Trim(strings.TrimPrefix(line, "VERSION="), `"`)
			}
		}
		file.Close()

		if name != "" {
			return name, version
		}
	}
	return "", ""
}
