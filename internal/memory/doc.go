// Package memory keeps the process inside its container memory budget.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from the MEMORY_LIMIT value the
// Kubernetes Downward API provides, scaled by MEMORY_RATIO (default 0.8) to
// leave room for libvips and OpenCV, which allocate outside the Go heap.
// An explicit GOMEMLIMIT always wins.
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// [Monitor] samples heap usage against that limit. Above the critical
// watermark it pauses callers of [Monitor.WaitIfPaused] and triggers a GC;
// below the high watermark it releases them. The scan pipeline calls
// WaitIfPaused before every batch:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
package memory
