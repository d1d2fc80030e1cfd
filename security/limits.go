package security

import "fmt"

// Level is a named security preset bundling resource-limit values used to
// size sandbox contexts.
type Level string

const (
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
	LevelMaximum Level = "maximum"
)

// ResourceLimits are the caller-tunable execution bounds. A zero field means
// "use the platform default for the selected security level".
type ResourceLimits struct {
	MemoryMB        int `json:"memory_mb"`
	CPUTimeSeconds  int `json:"cpu_time_seconds"`
	WallTimeSeconds int `json:"wall_time_seconds"`
	MaxProcesses    int `json:"max_processes"`
	MaxFiles        int `json:"max_files"`
}

// LimitSet is a fully resolved set of sandbox bounds for one request.
type LimitSet struct {
	ResourceLimits
	MaxOutputSize int
}

var levelLimits = map[Level]LimitSet{
	LevelLow: {
		ResourceLimits: ResourceLimits{
			MemoryMB:        512,
			CPUTimeSeconds:  30,
			WallTimeSeconds: 60,
			MaxProcesses:    5,
			MaxFiles:        50,
		},
		MaxOutputSize: 1024 * 1024,
	},
	LevelMedium: {
		ResourceLimits: ResourceLimits{
			MemoryMB:        256,
			CPUTimeSeconds:  15,
			WallTimeSeconds: 30,
			MaxProcesses:    3,
			MaxFiles:        25,
		},
		MaxOutputSize: 512 * 1024,
	},
	LevelHigh: {
		ResourceLimits: ResourceLimits{
			MemoryMB:        128,
			CPUTimeSeconds:  10,
			WallTimeSeconds: 20,
			MaxProcesses:    2,
			MaxFiles:        15,
		},
		MaxOutputSize: 256 * 1024,
	},
	LevelMaximum: {
		ResourceLimits: ResourceLimits{
			MemoryMB:        64,
			CPUTimeSeconds:  5,
			WallTimeSeconds: 10,
			MaxProcesses:    1,
			MaxFiles:        10,
		},
		MaxOutputSize: 128 * 1024,
	},
}

// ParseLevel converts a config string to a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelLow, LevelMedium, LevelHigh, LevelMaximum:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown security level: %q", s)
}

// Limits returns the preset bounds for the level. Unknown levels fall back to
// the high preset.
func (l Level) Limits() LimitSet {
	if ls, ok := levelLimits[l]; ok {
		return ls
	}
	return levelLimits[LevelHigh]
}

// Clamp resolves caller-requested limits against the level preset. Requested
// values may only tighten the preset, never loosen it: each positive field is
// capped at the preset value, and zero fields keep the preset default.
func (l Level) Clamp(req *ResourceLimits) LimitSet {
	out := l.Limits()
	if req == nil {
		return out
	}
	out.MemoryMB = tighten(req.MemoryMB, out.MemoryMB)
	out.CPUTimeSeconds = tighten(req.CPUTimeSeconds, out.CPUTimeSeconds)
	out.WallTimeSeconds = tighten(req.WallTimeSeconds, out.WallTimeSeconds)
	out.MaxProcesses = tighten(req.MaxProcesses, out.MaxProcesses)
	out.MaxFiles = tighten(req.MaxFiles, out.MaxFiles)
	return out
}

func tighten(requested, ceiling int) int {
	if requested <= 0 || requested > ceiling {
		return ceiling
	}
	return requested
}
