package concurrency

import (
	"os"
	"runtime"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// InitializeForContainers matches GOMAXPROCS to the container CPU quota.
// Call it at the start of main. The returned function restores the previous value.
func InitializeForContainers(logger *zap.Logger) func() {
	if logger == nil {
		logger = zap.NewNop()
	}
	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))
	if err != nil {
		logger.Warn("Failed to set maxprocs", zap.Error(err))
		return func() {}
	}
	logger.Debug("Concurrency initialized", zap.Int("gomaxprocs", runtime.GOMAXPROCS(0)))
	return undo
}

// IsKubernetes reports whether the process runs in a Kubernetes pod.
func IsKubernetes() bool {
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}

// DefaultPartitions is the streaming partition count used when none is
// configured: one per CPU, capped at four in Kubernetes.
func DefaultPartitions() int {
	cpus := runtime.GOMAXPROCS(0)
	if IsKubernetes() {
		return min(cpus, 4)
	}
	return max(cpus, 1)
}
