package dispatcher

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/harun/mate/internal/config"
	"github.com/harun/mate/pkg/agent"
	"github.com/harun/mate/pkg/session"
	"github.com/harun/mate/pkg/tools"
)

// Decision is the outcome of routing a user query to a specialist role.
type Decision struct {
	Role       string  `json:"role"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback"`
	Reason     string  `json:"reason,omitempty"`
}

// RoutingPolicy picks a specialist role for a query. Implementations return
// ErrRoutingAmbiguous when no role clearly fits; the dispatcher then falls
// back to the configured default role.
type RoutingPolicy interface {
	Route(ctx context.Context, query string, history []session.Turn) (Decision, error)
}

// KeywordPolicy routes by scoring role keywords against the query with
// word-boundary matching. Compiled patterns are cached per keyword.
type KeywordPolicy struct {
	roles []config.RoleConfig

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

// NewKeywordPolicy creates a keyword policy over the configured roles.
func NewKeywordPolicy(roles []config.RoleConfig) *KeywordPolicy {
	return &KeywordPolicy{
		roles:    roles,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Route scores every role's keywords against the query. The highest scoring
// role wins; a zero score or a tie for first place is ambiguous.
func (p *KeywordPolicy) Route(ctx context.Context, query string, history []session.Turn) (Decision, error) {
	lowered := strings.ToLower(query)

	bestRole := ""
	bestScore := 0
	tied := false

	for _, role := range p.roles {
		score := 0
		for _, kw := range role.Keywords {
			if p.matchKeyword(lowered, kw) {
				score++
			}
		}
		switch {
		case score > bestScore:
			bestRole = role.ID
			bestScore = score
			tied = false
		case score == bestScore && score > 0:
			tied = true
		}
	}

	if bestScore == 0 {
		return Decision{}, fmt.Errorf("%w: no role keywords matched query", ErrRoutingAmbiguous)
	}
	if tied {
		return Decision{}, fmt.Errorf("%w: multiple roles scored equally", ErrRoutingAmbiguous)
	}

	confidence := float64(bestScore) / float64(bestScore+1)
	return Decision{
		Role:       bestRole,
		Confidence: confidence,
		Reason:     fmt.Sprintf("matched %d keyword(s)", bestScore),
	}, nil
}

func (p *KeywordPolicy) matchKeyword(lowered, keyword string) bool {
	re := p.pattern(keyword)
	if re == nil {
		return strings.Contains(lowered, strings.ToLower(keyword))
	}
	return re.MatchString(lowered)
}

func (p *KeywordPolicy) pattern(keyword string) *regexp.Regexp {
	p.mu.RLock()
	re, ok := p.patterns[keyword]
	p.mu.RUnlock()
	if ok {
		return re
	}

	compiled, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(keyword)) + `\b`)
	if err != nil {
		compiled = nil
	}

	p.mu.Lock()
	p.patterns[keyword] = compiled
	p.mu.Unlock()
	return compiled
}

// ModelPolicy routes with a small classifier call against the model. The
// model is asked for a JSON object naming one of the known roles; anything
// it returns outside that set is ambiguous.
type ModelPolicy struct {
	invoker *agent.Invoker
	model   string
	roles   []config.RoleConfig
}

// NewModelPolicy creates a model-backed routing policy.
func NewModelPolicy(invoker *agent.Invoker, model string, roles []config.RoleConfig) *ModelPolicy {
	return &ModelPolicy{invoker: invoker, model: model, roles: roles}
}

func (p *ModelPolicy) Route(ctx context.Context, query string, history []session.Turn) (Decision, error) {
	var sb strings.Builder
	sb.WriteString("Classify the user query into exactly one of these specialist roles:\n")
	for _, role := range p.roles {
		fmt.Fprintf(&sb, "- %s: %s\n", role.ID, role.Name)
	}
	sb.WriteString("\nRespond with JSON only: {\"role\": \"<id>\", \"confidence\": <0..1>}")

	result, err := p.invoker.Invoke(ctx, agent.InvokeParams{
		Model:        p.model,
		SystemPrompt: sb.String(),
		Messages:     []agent.Message{{Role: "user", Content: query}},
		Temperature:  0.0,
		MaxTokens:    128,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("routing classifier call failed: %w", err)
	}

	var parsed struct {
		Role       string  `json:"role"`
		Confidence float64 `json:"confidence"`
	}
	if err := tools.ExtractJSONInto(result.Content, &parsed); err != nil {
		return Decision{}, fmt.Errorf("%w: unparseable classifier response: %v", ErrRoutingAmbiguous, err)
	}

	for _, role := range p.roles {
		if role.ID == parsed.Role {
			return Decision{Role: parsed.Role, Confidence: parsed.Confidence, Reason: "model classification"}, nil
		}
	}
	return Decision{}, fmt.Errorf("%w: classifier returned unknown role %q", ErrRoutingAmbiguous, parsed.Role)
}
