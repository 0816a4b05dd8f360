package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"text/template/parse"
)

const (
	DefaultAnalysisPrompt = "Describe what happens in this video"

	DefaultResearchTemplate = `Based on this video analysis: {{.analysisResult}}

Please research: {{.researchQuery}}

IMPORTANT: Please provide a comprehensive research response using proper markdown formatting including:
- Use ## for main headings and ### for subheadings
- If table, then proper markdown table format

Provide comprehensive insights with clear structure and professional formatting.
`

	fieldAnalysisResult = "analysisResult"
	fieldResearchQuery  = "researchQuery"
)

var (
	ErrMalformedTemplate  = errors.New("malformed research template")
	ErrMissingPlaceholder = errors.New("research template is missing a placeholder")
)

// Store holds the two templates for the life of the process. It is safe for
// concurrent use once constructed.
type Store struct {
	analysisPrompt string
	research       *template.Template
	researchErr    error
}

// NewStore builds a store from template text. Blank text selects the
// built-in default. A research template that does not parse, or lacks one of
// its placeholders, is kept as an error reported by RenderResearch.
func NewStore(analysisPrompt, researchTemplate string) *Store {
	if strings.TrimSpace(analysisPrompt) == "" {
		analysisPrompt = DefaultAnalysisPrompt
	}

	if strings.TrimSpace(researchTemplate) == "" {
		researchTemplate = DefaultResearchTemplate
	}

	store := &Store{analysisPrompt: strings.TrimSpace(analysisPrompt)}
	store.research, store.researchErr = parseResearch(researchTemplate)

	return store
}

// LoadStore reads both templates through loader, substituting defaults for
// anything unavailable.
func LoadStore(ctx context.Context, loader *Loader, analysisLocation, researchLocation string) *Store {
	analysisPrompt, _ := loader.Load(ctx, analysisLocation)
	researchTemplate, _ := loader.Load(ctx, researchLocation)

	store := NewStore(analysisPrompt, researchTemplate)
	if store.researchErr != nil {
		loader.logger.ErrorContext(ctx, "research template is unusable, research stage will fail",
			"location", researchLocation,
			"error", store.researchErr,
		)
	}

	return store
}

func (s *Store) AnalysisPrompt() string {
	return s.analysisPrompt
}

// Err reports why the research template cannot be rendered, if it cannot.
func (s *Store) Err() error {
	return s.researchErr
}

// RenderResearch substitutes the analysis text and the user's question into
// the research template.
func (s *Store) RenderResearch(analysisResult, researchQuery string) (string, error) {
	if s.researchErr != nil {
		return "", s.researchErr
	}

	var buf strings.Builder

	err := s.research.Execute(&buf, map[string]string{
		fieldAnalysisResult: analysisResult,
		fieldResearchQuery:  researchQuery,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedTemplate, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

func parseResearch(text string) (*template.Template, error) {
	tmpl, err := template.New("research").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTemplate, err)
	}

	fields := make(map[string]bool)
	collectFields(tmpl.Tree.Root, fields)

	for _, name := range []string{fieldAnalysisResult, fieldResearchQuery} {
		if !fields[name] {
			return nil, fmt.Errorf("%w: {{.%s}}", ErrMissingPlaceholder, name)
		}
	}

	return tmpl, nil
}

func collectFields(node parse.Node, fields map[string]bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}

		for _, child := range n.Nodes {
			collectFields(child, fields)
		}
	case *parse.ActionNode:
		collectFields(n.Pipe, fields)
	case *parse.PipeNode:
		if n == nil {
			return
		}

		for _, cmd := range n.Cmds {
			collectFields(cmd, fields)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			collectFields(arg, fields)
		}
	case *parse.FieldNode:
		if len(n.Ident) > 0 {
			fields[n.Ident[0]] = true
		}
	case *parse.IfNode:
		collectBranch(&n.BranchNode, fields)
	case *parse.RangeNode:
		collectBranch(&n.BranchNode, fields)
	case *parse.WithNode:
		collectBranch(&n.BranchNode, fields)
	}
}

func collectBranch(n *parse.BranchNode, fields map[string]bool) {
	collectFields(n.Pipe, fields)
	collectFields(n.List, fields)
	collectFields(n.ElseList, fields)
}
