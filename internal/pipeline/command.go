// Package pipeline drives the COLMAP -> OpenMVS -> STL reconstruction
// sequence as an ordered set of stage commands over a shared RunState.
package pipeline

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/photo2stl/internal/logfields"
)

// StageCommand represents a single pipeline stage that can be executed.
type StageCommand interface {
	// Name returns the name of this stage command
	Name() StageName

	// Execute runs the stage command with the given run state
	Execute(ctx context.Context, rs *RunState) Execution

	// Description returns a human-readable description of what this stage does
	Description() string

	// Dependencies returns the names of stages that must complete successfully before this stage
	Dependencies() []StageName
}

// CommandMetadata provides additional information about a command.
type CommandMetadata struct {
	Name         StageName
	Description  string
	Dependencies []StageName
	Optional     bool                 // If true, failure doesn't stop the pipeline
	SkipIf       func(*RunState) bool // Function to determine if stage should be skipped
}

// BaseCommand provides a common implementation for stage commands.
type BaseCommand struct {
	metadata CommandMetadata
}

// NewBaseCommand creates a new base command with the given metadata.
func NewBaseCommand(metadata CommandMetadata) BaseCommand {
	return BaseCommand{metadata: metadata}
}

// Name returns the stage name.
func (c BaseCommand) Name() StageName {
	return c.metadata.Name
}

// Description returns the stage description.
func (c BaseCommand) Description() string {
	return c.metadata.Description
}

// Dependencies returns the stage dependencies.
func (c BaseCommand) Dependencies() []StageName {
	return c.metadata.Dependencies
}

// IsOptional returns whether this stage is optional.
func (c BaseCommand) IsOptional() bool {
	return c.metadata.Optional
}

// ShouldSkip checks if this stage should be skipped based on run state.
func (c BaseCommand) ShouldSkip(rs *RunState) bool {
	if c.metadata.SkipIf != nil {
		return c.metadata.SkipIf(rs)
	}
	return false
}

// LogStageStart logs the start of a stage execution.
func (c BaseCommand) LogStageStart() {
	slog.Info("Starting stage", logfields.Stage(string(c.Name())))
}

// LogStageSuccess logs successful completion of a stage.
func (c BaseCommand) LogStageSuccess() {
	slog.Info("Stage completed successfully", logfields.Stage(string(c.Name())))
}

// LogStageSkipped logs that a stage was skipped.
func (c BaseCommand) LogStageSkipped() {
	slog.Info("Stage skipped", logfields.Stage(string(c.Name())))
}

// LogStageFailure logs failure of a stage.
func (c BaseCommand) LogStageFailure(err error) {
	slog.Error("Stage failed", logfields.Stage(string(c.Name())), logfields.Error(err))
}

// CommandRegistry manages registered stage commands.
type CommandRegistry struct {
	commands map[StageName]StageCommand
}

// NewCommandRegistry creates a new command registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[StageName]StageCommand),
	}
}

// Register adds a command to the registry.
func (r *CommandRegistry) Register(cmd StageCommand) {
	r.commands[cmd.Name()] = cmd
}

// Get retrieves a command by name.
func (r *CommandRegistry) Get(name StageName) (StageCommand, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

// List returns all registered command names.
func (r *CommandRegistry) List() []StageName {
	names := make([]StageName, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}
