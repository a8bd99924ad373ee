package prompt

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/studybuddy/internal/domain"
	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	"github.com/kailas-cloud/studybuddy/internal/domain/generation"
)

// Instructions per answer shape.
const (
	ShortFormInstruction = "Provide a concise 2-mark answer format with key points " +
		"(maximum 2-3 sentences with bullet points if needed)"
	LongFormInstruction = "Provide a detailed 16-mark answer format with introduction, " +
		"detailed explanation with examples, and conclusion (comprehensive response with proper structure)"
)

// Policy is the prompt shape and sampling parameters of one category.
type Policy struct {
	Instruction string
	Params      generation.Params
}

// Config holds composer settings. Zero fields take defaults.
type Config struct {
	// Persona may contain one %s, replaced by EvaluationStyle.
	Persona         string
	EvaluationStyle string
	Policies        map[category.Category]Policy
}

// DefaultConfig returns the Anna University policy table.
func DefaultConfig() Config {
	return Config{
		Persona:         "You are a professional AI assistant specialized in %s exam preparation.",
		EvaluationStyle: "Anna University",
		Policies: map[category.Category]Policy{
			category.ShortForm: {
				Instruction: ShortFormInstruction,
				Params:      generation.Params{MaxOutputTokens: 512, Temperature: 0.7, TopK: 40, TopP: 0.95},
			},
			category.LongForm: {
				Instruction: LongFormInstruction,
				Params:      generation.Params{MaxOutputTokens: 1024, Temperature: 0.7, TopK: 40, TopP: 0.95},
			},
		},
	}
}

// Composer builds provider requests from questions. Safe for concurrent use.
type Composer struct {
	system   string
	style    string
	policies map[category.Category]Policy
}

// New creates a Composer. Categories missing from cfg.Policies use the default policy.
func New(cfg Config) *Composer {
	def := DefaultConfig()
	if cfg.Persona == "" {
		cfg.Persona = def.Persona
	}
	if cfg.EvaluationStyle == "" {
		cfg.EvaluationStyle = def.EvaluationStyle
	}

	policies := make(map[category.Category]Policy, len(def.Policies))
	for c, p := range def.Policies {
		if custom, ok := cfg.Policies[c]; ok {
			p = merge(p, custom)
		}
		policies[c] = p
	}

	system := cfg.Persona
	if strings.Contains(system, "%s") {
		system = fmt.Sprintf(system, cfg.EvaluationStyle)
	}

	return &Composer{
		system:   system,
		style:    cfg.EvaluationStyle,
		policies: policies,
	}
}

// Build composes the provider request for question under category c.
// Pure: the same input always yields the same request.
func (c *Composer) Build(question string, cat category.Category) (generation.Request, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return generation.Request{}, fmt.Errorf("question is empty: %w", domain.ErrInvalidInput)
	}
	p, ok := c.policies[cat]
	if !ok {
		return generation.Request{}, fmt.Errorf("answer type %q: %w", cat, domain.ErrInvalidInput)
	}

	var b strings.Builder
	b.WriteString(p.Instruction)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(q)
	b.WriteString("\n\nPlease format your response appropriately for ")
	b.WriteString(c.style)
	b.WriteString(" evaluation standards with clear structure and academic language.")

	return generation.Request{
		Category: cat,
		System:   c.system,
		Prompt:   b.String(),
		Params:   p.Params,
	}, nil
}

// Policy returns the policy applied to cat.
func (c *Composer) Policy(cat category.Category) (Policy, bool) {
	p, ok := c.policies[cat]
	return p, ok
}

func merge(base, custom Policy) Policy {
	if custom.Instruction != "" {
		base.Instruction = custom.Instruction
	}
	if custom.Params.MaxOutputTokens > 0 {
		base.Params.MaxOutputTokens = custom.Params.MaxOutputTokens
	}
	if custom.Params.Temperature > 0 {
		base.Params.Temperature = custom.Params.Temperature
	}
	if custom.Params.TopK > 0 {
		base.Params.TopK = custom.Params.TopK
	}
	if custom.Params.TopP > 0 {
		base.Params.TopP = custom.Params.TopP
	}
	return base
}
