package agent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed agent.json
var agentCardJSON []byte

var (
	// AgentCardData is the validated card served at /.well-known/agent.json.
	AgentCardData []byte

	loadOnce sync.Once
	loadErr  error
)

// LoadAgentCard checks the embedded card once and publishes it in
// AgentCardData.
func LoadAgentCard() error {
	loadOnce.Do(func() {
		var card map[string]any
		if err := json.Unmarshal(agentCardJSON, &card); err != nil {
			loadErr = fmt.Errorf("invalid agent card: %w", err)
			return
		}
		for _, field := range []string{"name", "description", "version", "capabilities", "endpoints"} {
			if _, ok := card[field]; !ok {
				loadErr = fmt.Errorf("agent card is missing %q", field)
				return
			}
		}
		AgentCardData = agentCardJSON
	})
	return loadErr
}
