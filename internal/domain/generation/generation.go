package generation

import "github.com/kailas-cloud/studybuddy/internal/domain/category"

// Params controls sampling on the provider side.
type Params struct {
	MaxOutputTokens int
	Temperature     float32
	TopK            int
	TopP            float32
}

// Request is a fully composed provider call: instruction text plus sampling parameters.
type Request struct {
	Category category.Category
	// System carries the persona; providers without a system role may prepend it to Prompt.
	System string
	Prompt string
	Params Params
}

// Text returns System and Prompt joined the way a single-message provider expects them.
func (r Request) Text() string {
	if r.System == "" {
		return r.Prompt
	}
	return r.System + " " + r.Prompt
}
