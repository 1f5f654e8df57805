package adapters

var registry = map[AgentType]Adapter{
	AgentClaudeCode: NewClaudeCodeAdapter(),
}

// Get returns the adapter for an agent type, or nil when none is registered.
func Get(agentType AgentType) Adapter {
	return registry[agentType]
}

// Default returns the adapter used when no agent type is specified.
func Default() Adapter {
	return registry[AgentClaudeCode]
}

// All returns every registered adapter.
func All() []Adapter {
	out := make([]Adapter, 0, len(registry))
	for _, a := range registry {
		out = append(out, a)
	}
	return out
}
