package services

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"scopeboard/internal/models"
)

const MB = 1024 * 1024

var startedAt = time.Now()

// GetServiceStatus reports the resource usage of this process
func GetServiceStatus(cache *WorkspaceCache) (*models.ServiceStatus, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	status := &models.ServiceStatus{
		PID:        proc.Pid,
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(startedAt).Round(time.Second).String(),
	}

	if cpuPercent, err := proc.CPUPercent(); err == nil {
		status.CPUPercent = cpuPercent
	}
	if memInfo, err := proc.MemoryInfo(); err == nil {
		status.RSSMB = float64(memInfo.RSS) / MB
	}
	if memPercent, err := proc.MemoryPercent(); err == nil {
		status.MemPercent = memPercent
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status.HostMemPercent = vm.UsedPercent
	}

	if cache != nil {
		cache.mu.RLock()
		status.Workspaces = len(cache.workspaces)
		status.Sessions = len(cache.sessions)
		cache.mu.RUnlock()
	}

	return status, nil
}
