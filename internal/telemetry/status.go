package telemetry

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"hydro-monitor-backend/internal/model"
)

// withGauges fills the transient resource-usage fields of a status snapshot.
// Gauge failures leave the field at zero rather than failing the call.
func (s *Service) withGauges(status model.SystemStatus) model.SystemStatus {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status.CPUUsage = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status.MemoryUsage = vm.UsedPercent
	}
	status.Uptime = time.Since(s.startedAt).Round(time.Second).String()
	return status
}
