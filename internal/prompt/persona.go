// Package prompt holds the assistant persona: system prompt, greeting and
// fallback reply, loaded from YAML.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wolfman30/discovery-widget/internal/leads"
)

//go:embed default_persona.yaml
var defaultPersonaYAML []byte

// Persona configures how the assistant talks.
type Persona struct {
	Name                 string `yaml:"name"`
	Greeting             string `yaml:"greeting" validate:"required"`
	FallbackReply        string `yaml:"fallback_reply" validate:"required"`
	SystemPrompt         string `yaml:"system_prompt" validate:"required"`
	LeadInfoInstructions string `yaml:"lead_info_instructions"`
}

var validate = validator.New()

// Default returns the embedded persona.
func Default() *Persona {
	p, err := parse(defaultPersonaYAML)
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded persona invalid: %v", err))
	}
	return p
}

// Load reads a persona file and fills unset fields from the default. An empty
// path returns the default.
func Load(path string) (*Persona, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: read persona: %w", err)
	}

	var override Persona
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("prompt: parse persona: %w", err)
	}
	p := Default()
	p.overlay(override)
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("prompt: invalid persona: %w", err)
	}
	return p, nil
}

func parse(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if err := validate.Struct(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Persona) overlay(o Persona) {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&p.Name, o.Name)
	set(&p.Greeting, o.Greeting)
	set(&p.FallbackReply, o.FallbackReply)
	set(&p.SystemPrompt, o.SystemPrompt)
	set(&p.LeadInfoInstructions, o.LeadInfoInstructions)
}

// System returns the system prompt blocks for one turn: the persona, what is
// already known about the lead, and the side-channel instructions.
func (p *Persona) System(lead leads.Info) []string {
	blocks := []string{strings.TrimSpace(p.SystemPrompt)}
	if known := KnownLeadDetails(lead); known != "" {
		blocks = append(blocks, known)
	}
	if s := strings.TrimSpace(p.LeadInfoInstructions); s != "" {
		blocks = append(blocks, s)
	}
	return blocks
}

// KnownLeadDetails renders lead as a prompt block so the model does not ask
// for details it already has.
func KnownLeadDetails(lead leads.Info) string {
	if lead.IsEmpty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("KNOWN LEAD DETAILS (do not ask for these again):\n")
	line := func(label, v string) {
		if v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, v)
		}
	}
	line("Name", lead.Name)
	line("Company", lead.Company)
	line("Email", lead.Email)
	line("Phone", lead.Phone)
	line("Website", lead.Website)
	line("Problem", lead.Problem)
	line("Intent", string(lead.Intent))
	if lead.Complete() {
		b.WriteString("All details required for scheduling are known.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
