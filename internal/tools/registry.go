package tools

import (
	"sort"

	"github.com/samsaffron/md-tools/internal/config"
	"github.com/samsaffron/md-tools/internal/mdedit"
)

// Registry manages the markdown tools enabled by configuration.
type Registry struct {
	config    *ToolConfig
	policy    *PathPolicy
	engine    *mdedit.Engine
	appConfig *config.Config

	// Registered tools
	tools map[string]Tool
}

// NewRegistry creates a new registry from configuration. appConfig may be
// nil, in which case engine and diagnostics defaults apply.
func NewRegistry(toolConfig *ToolConfig, appConfig *config.Config) (*Registry, error) {
	policy, err := toolConfig.BuildPolicy()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		config:    toolConfig,
		policy:    policy,
		engine:    NewEngine(appConfig),
		appConfig: appConfig,
		tools:     make(map[string]Tool),
	}

	if err := r.registerEnabledTools(); err != nil {
		return nil, err
	}

	return r, nil
}

// NewRegistryFromConfig builds the tool config from appConfig and creates a
// registry from it.
func NewRegistryFromConfig(appConfig *config.Config) (*Registry, error) {
	t := appConfig.Tools
	toolConfig := NewToolConfigFromFields(t.Enabled, t.ReadDirs, t.WriteDirs, t.Protected, t.MaxFileBytes)
	if errs := toolConfig.Validate(); len(errs) > 0 {
		return nil, errs[0]
	}
	return NewRegistry(&toolConfig, appConfig)
}

// NewEngine creates the edit engine described by appConfig.
func NewEngine(appConfig *config.Config) *mdedit.Engine {
	if appConfig == nil {
		return mdedit.New(mdedit.Options{EnsureTrailingNewline: true})
	}
	opts := mdedit.Options{
		EnsureTrailingNewline: appConfig.Edit.EnsureTrailingNewline,
		RegexTimeout:          appConfig.Edit.RegexTimeout,
	}
	if appConfig.Format.Command != "" {
		opts.Formatter = CommandFormatter{
			Command: appConfig.Format.Command,
			Args:    appConfig.Format.Args,
			Timeout: appConfig.Format.Timeout,
		}
	}
	return mdedit.New(opts)
}

// registerEnabledTools registers all tools that are enabled in config.
func (r *Registry) registerEnabledTools() error {
	for _, specName := range r.config.Enabled {
		if err := r.registerTool(specName); err != nil {
			return err
		}
	}
	return nil
}

// registerTool registers a single tool by spec name.
func (r *Registry) registerTool(specName string) error {
	if !ValidToolName(specName) {
		return NewToolErrorf(ErrInvalidParams, "unknown tool: %s", specName)
	}

	var tool Tool

	switch specName {
	case StatToolName:
		tool = NewStatTool(r.engine, r.policy)
	case ValidateToolName:
		tool = NewValidateTool(r.engine, r.policy)
	case ApplyToolName:
		includeDiff, diagDir := false, ""
		if r.appConfig != nil {
			includeDiff = r.appConfig.Edit.IncludeDiff
			if r.appConfig.Diagnostics.Enabled {
				diagDir = r.appConfig.DiagnosticsDir()
			}
		}
		tool = NewApplyTool(r.engine, r.policy, includeDiff, diagDir)
	case ReadSectionToolName:
		tool = NewReadSectionTool(r.engine, r.policy)
	case FindToolName:
		tool = NewFindTool(r.policy)
	}

	r.tools[specName] = tool
	return nil
}

// Get returns a tool by spec name.
func (r *Registry) Get(specName string) (Tool, bool) {
	tool, ok := r.tools[specName]
	return tool, ok
}

// IsEnabled checks if a tool is enabled.
func (r *Registry) IsEnabled(specName string) bool {
	return r.config.IsToolEnabled(specName)
}

// Tools returns all registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// GetSpecs returns specs for all registered tools.
func (r *Registry) GetSpecs() []ToolSpec {
	tools := r.Tools()
	specs := make([]ToolSpec, 0, len(tools))
	for _, tool := range tools {
		specs = append(specs, tool.Spec())
	}
	return specs
}

// Policy returns the path policy shared by the registered tools.
func (r *Registry) Policy() *PathPolicy {
	return r.policy
}
