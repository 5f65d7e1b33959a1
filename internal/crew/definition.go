package crew

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default_crew.yaml
var defaultCrewYAML []byte

// AgentSpec declares one agent: the persona the model is asked to adopt and
// the tools it may call.
type AgentSpec struct {
	Name        string   `yaml:"name"`
	Role        string   `yaml:"role"`
	Goal        string   `yaml:"goal"`
	Backstory   string   `yaml:"backstory"`
	Tools       []string `yaml:"tools,omitempty"`
	Temperature *float32 `yaml:"temperature,omitempty"`
}

// TaskSpec declares one task. Description is a text/template rendered
// against the profile fields; Context names earlier tasks whose output is
// handed to this one.
type TaskSpec struct {
	Name           string   `yaml:"name"`
	Agent          string   `yaml:"agent"`
	Description    string   `yaml:"description"`
	ExpectedOutput string   `yaml:"expected_output"`
	Context        []string `yaml:"context,omitempty"`
}

// Definition is an ordered set of agents and tasks.
type Definition struct {
	Name          string      `yaml:"name"`
	MaxIterations int         `yaml:"max_iterations,omitempty"`
	Agents        []AgentSpec `yaml:"agents"`
	Tasks         []TaskSpec  `yaml:"tasks"`
}

// Task is a TaskSpec with its description rendered for a specific profile.
type Task struct {
	Name           string
	Agent          AgentSpec
	Description    string
	ExpectedOutput string
	Context        []string
}

// DefaultDefinition returns the built-in nutrition crew.
func DefaultDefinition() (Definition, error) {
	def, err := ParseDefinition(defaultCrewYAML)
	if err != nil {
		return Definition{}, fmt.Errorf("crew: default definition: %w", err)
	}
	return def, nil
}

// ParseDefinition decodes and validates a crew definition from YAML bytes.
func ParseDefinition(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("crew: definition payload is empty")
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("crew: decode definition: %w", err)
	}
	if def.MaxIterations < 0 {
		def.MaxIterations = 0
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// LoadDefinitionFile loads a crew definition from disk.
func LoadDefinitionFile(path string) (Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("crew: read %s: %w", path, err)
	}
	def, err := ParseDefinition(content)
	if err != nil {
		return Definition{}, fmt.Errorf("crew: %s: %w", path, err)
	}
	return def, nil
}

// Validate checks that names are unique, every task is assigned to a known
// agent, and context only ever points backwards.
func (def Definition) Validate() error {
	if len(def.Agents) == 0 {
		return fmt.Errorf("crew: at least one agent is required")
	}
	if len(def.Tasks) == 0 {
		return fmt.Errorf("crew: at least one task is required")
	}
	agents := make(map[string]struct{}, len(def.Agents))
	for idx, agent := range def.Agents {
		if strings.TrimSpace(agent.Name) == "" {
			return fmt.Errorf("crew: agent[%d]: name is required", idx)
		}
		if _, dup := agents[agent.Name]; dup {
			return fmt.Errorf("crew: duplicate agent %s", agent.Name)
		}
		if strings.TrimSpace(agent.Role) == "" || strings.TrimSpace(agent.Goal) == "" {
			return fmt.Errorf("crew: agent %s: role and goal are required", agent.Name)
		}
		agents[agent.Name] = struct{}{}
	}

	seen := make(map[string]struct{}, len(def.Tasks))
	for idx, task := range def.Tasks {
		if strings.TrimSpace(task.Name) == "" {
			return fmt.Errorf("crew: task[%d]: name is required", idx)
		}
		if _, dup := seen[task.Name]; dup {
			return fmt.Errorf("crew: duplicate task %s", task.Name)
		}
		if _, ok := agents[task.Agent]; !ok {
			return fmt.Errorf("crew: task %s references unknown agent %s", task.Name, task.Agent)
		}
		if strings.TrimSpace(task.Description) == "" {
			return fmt.Errorf("crew: task %s: description is required", task.Name)
		}
		for _, dep := range task.Context {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("crew: task %s: context %s must reference an earlier task", task.Name, dep)
			}
		}
		if _, err := parseTemplate(task); err != nil {
			return err
		}
		seen[task.Name] = struct{}{}
	}
	return nil
}

// Agent looks up an agent by name.
func (def Definition) Agent(name string) (AgentSpec, bool) {
	for _, agent := range def.Agents {
		if agent.Name == name {
			return agent, true
		}
	}
	return AgentSpec{}, false
}

// ToolNames returns every tool referenced by any agent, without duplicates.
func (def Definition) ToolNames() []string {
	var names []string
	seen := map[string]struct{}{}
	for _, agent := range def.Agents {
		for _, tool := range agent.Tools {
			if _, ok := seen[tool]; ok {
				continue
			}
			seen[tool] = struct{}{}
			names = append(names, tool)
		}
	}
	return names
}

// Render executes every task template against fields. A template that
// references a missing field is an error.
func (def Definition) Render(fields map[string]string) ([]Task, error) {
	tasks := make([]Task, 0, len(def.Tasks))
	for _, spec := range def.Tasks {
		tmpl, err := parseTemplate(spec)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, fields); err != nil {
			return nil, fmt.Errorf("crew: render task %s: %w", spec.Name, err)
		}
		agent, _ := def.Agent(spec.Agent)
		tasks = append(tasks, Task{
			Name:           spec.Name,
			Agent:          agent,
			Description:    strings.TrimSpace(buf.String()),
			ExpectedOutput: strings.TrimSpace(spec.ExpectedOutput),
			Context:        append([]string(nil), spec.Context...),
		})
	}
	return tasks, nil
}

func parseTemplate(spec TaskSpec) (*template.Template, error) {
	tmpl, err := template.New(spec.Name).Option("missingkey=error").Parse(spec.Description)
	if err != nil {
		return nil, fmt.Errorf("crew: task %s: parse description: %w", spec.Name, err)
	}
	return tmpl, nil
}
