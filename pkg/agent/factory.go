package agent

import "fmt"

// New builds an agent for a module type. The switch is closed on purpose:
// unknown modules are an explicit error, not a dynamic lookup.
func New(moduleType, sessionID string, context map[string]any, generator TextGenerator) (Agent, error) {
	switch moduleType {
	case ModuleCoaching:
		return NewCoachingAgent(sessionID, context, generator), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrModuleNotSupported, moduleType)
	}
}
