package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Accelerator reports the outcome of a hardware encoder probe.
type Accelerator struct {
	Available bool
	Detail    string
}

const acceleratorProbeTimeout = 5 * time.Second

// DetectAccelerator runs the configured probe command and reports whether
// hardware encoding is usable. A clean exit means the GPU is reachable.
// The probe runs fresh for every render so a driver appearing or vanishing
// mid-daemon is picked up on the next job.
func DetectAccelerator(ctx context.Context, probeCommand string) Accelerator {
	probeCommand = strings.TrimSpace(probeCommand)
	if probeCommand == "" {
		return Accelerator{Detail: "accelerator probe not configured"}
	}
	if _, err := exec.LookPath(probeCommand); err != nil {
		return Accelerator{Detail: "probe binary not found"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, acceleratorProbeTimeout)
	defer cancel()

	if err := exec.CommandContext(probeCtx, probeCommand).Run(); err != nil {
		return Accelerator{Detail: "probe reported no usable device"}
	}
	return Accelerator{Available: true}
}
