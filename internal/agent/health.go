package agent

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aerolink-io/aerolink/internal/agent/hub"
	"github.com/aerolink-io/aerolink/pkg/log"
)

// hostStats samples companion-computer health for the registration packet.
// Any probe that fails is reported as zero rather than failing registration.
func hostStats(droneID, version, firmware string) hub.Registration {
	reg := hub.Registration{
		DroneID:         droneID,
		AgentVersion:    version,
		FirmwareVersion: firmware,
		Timestamp:       time.Now().Unix(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		reg.CPUPercent = percents[0]
	} else if err != nil {
		log.Debug("CPU probe failed", "err", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		reg.MemoryPercent = vm.UsedPercent
	} else {
		log.Debug("Memory probe failed", "err", err)
	}

	if up, err := host.Uptime(); err == nil {
		reg.UptimeSeconds = up
	} else {
		log.Debug("Uptime probe failed", "err", err)
	}

	return reg
}
