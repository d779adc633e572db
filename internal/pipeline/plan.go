package pipeline

import (
	"fmt"
)

// defaultOrder is the canonical stage sequence. The plan verifies that the
// declared dependencies of each command are satisfied by its predecessors,
// so a reordering mistake fails fast instead of producing a broken scene.
var defaultOrder = []StageName{
	StageImages,
	StageFeatures,
	StageMatching,
	StageSparse,
	StageConvert,
	StageImport,
	StageDensify,
	StageMesh,
	StageRefine,
	StageTexture,
	StageExportSTL,
}

// Plan is an ordered, validated list of stage commands for one run.
type Plan struct {
	stages []StageCommand
}

// NewPlan builds the execution plan from a registry, optionally truncated
// after the named stage (the `--until` flag; empty runs everything).
func NewPlan(registry *CommandRegistry, until StageName) (*Plan, error) {
	if until != "" && !knownStage(until) {
		return nil, fmt.Errorf("unknown stage %q", until)
	}

	plan := &Plan{}
	completed := map[StageName]bool{}
	for _, name := range defaultOrder {
		cmd, ok := registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("stage %q not registered", name)
		}
		for _, dep := range cmd.Dependencies() {
			if !completed[dep] {
				return nil, fmt.Errorf("stage %q depends on %q which is not scheduled before it", name, dep)
			}
		}
		plan.stages = append(plan.stages, cmd)
		completed[name] = true
		if name == until {
			break
		}
	}
	return plan, nil
}

// Stages returns the ordered stage commands.
func (p *Plan) Stages() []StageCommand {
	return p.stages
}

// StageNames returns the ordered stage names (for reports and tests).
func (p *Plan) StageNames() []StageName {
	names := make([]StageName, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

func knownStage(name StageName) bool {
	for _, s := range defaultOrder {
		if s == name {
			return true
		}
	}
	return false
}

// KnownStages lists all stage names in execution order.
func KnownStages() []StageName {
	out := make([]StageName, len(defaultOrder))
	copy(out, defaultOrder)
	return out
}
