package template

import (
	"context"
	"fmt"

	"github.com/osteele/liquid"

	"github.com/ignite/impression/internal/domain"
)

// Rendered is the output of a render. HTML is empty for plaintext-only
// templates.
type Rendered struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

// Renderer turns template bindings into a message.
type Renderer interface {
	Render(bindings map[string]any) (Rendered, error)
}

// DefaultTemplate renders subject and body unchanged, with no HTML part.
type DefaultTemplate struct {
	engine *liquid.Engine
}

// Render implements Renderer.
func (d DefaultTemplate) Render(bindings map[string]any) (Rendered, error) {
	engine := d.engine
	if engine == nil {
		engine = liquid.NewEngine()
	}
	subject, err := engine.ParseAndRenderString(domain.DefaultTemplateSubject, bindings)
	if err != nil {
		return Rendered{}, fmt.Errorf("render subject: %w", err)
	}
	text, err := engine.ParseAndRenderString(domain.DefaultTemplatePlaintext, bindings)
	if err != nil {
		return Rendered{}, fmt.Errorf("render body: %w", err)
	}
	return Rendered{Subject: subject, Text: text}, nil
}

// compiled is a flattened, parsed stored template.
type compiled struct {
	name     string
	subject  *liquid.Template
	html     *liquid.Template
	text     *liquid.Template // nil when plaintext is generated from html
	autoText bool
}

// Render implements Renderer.
func (c *compiled) Render(bindings map[string]any) (Rendered, error) {
	var out Rendered
	var err error
	if out.Subject, err = c.subject.RenderString(bindings); err != nil {
		return Rendered{}, fmt.Errorf("render %s subject: %w", c.name, err)
	}
	if out.HTML, err = c.html.RenderString(bindings); err != nil {
		return Rendered{}, fmt.Errorf("render %s html: %w", c.name, err)
	}
	if c.autoText {
		if out.Text, err = htmlToText(out.HTML); err != nil {
			return Rendered{}, fmt.Errorf("render %s plaintext: %w", c.name, err)
		}
		return out, nil
	}
	if out.Text, err = c.text.RenderString(bindings); err != nil {
		return Rendered{}, fmt.Errorf("render %s plaintext: %w", c.name, err)
	}
	return out, nil
}

// Engine resolves stored templates into renderers.
type Engine struct {
	repo   Repository
	liquid *liquid.Engine
}

// NewEngine creates a template engine backed by repo.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, liquid: liquid.NewEngine()}
}

// Resolve returns the renderer for a service's template. A nil id yields
// the pass-through default.
func (e *Engine) Resolve(ctx context.Context, templateID *string) (Renderer, error) {
	if templateID == nil || *templateID == "" {
		return DefaultTemplate{engine: e.liquid}, nil
	}
	chain, err := e.chain(ctx, *templateID)
	if err != nil {
		return nil, err
	}
	return e.compile(chain)
}

// chain loads id and its ancestors, root first.
func (e *Engine) chain(ctx context.Context, id string) ([]*domain.Template, error) {
	seen := make(map[string]struct{})
	var chain []*domain.Template
	for next := &id; next != nil && *next != ""; {
		if _, dup := seen[*next]; dup {
			return nil, fmt.Errorf("%w: %s", ErrTemplateCycle, *next)
		}
		seen[*next] = struct{}{}
		t, err := e.repo.Get(ctx, *next)
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", *next, err)
		}
		chain = append(chain, t)
		next = t.ExtendsID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (e *Engine) compile(chain []*domain.Template) (*compiled, error) {
	leaf := chain[len(chain)-1]
	htmlSrc := make([]string, len(chain))
	textSrc := make([]string, len(chain))
	for i, t := range chain {
		htmlSrc[i] = t.BodyHTML
		textSrc[i] = t.BodyPlaintext
	}

	c := &compiled{name: leaf.Name, autoText: leaf.AutogeneratePlaintext}
	var err error
	if c.subject, err = e.liquid.ParseString(leaf.Subject); err != nil {
		return nil, fmt.Errorf("parse %s subject: %w", leaf.Name, err)
	}
	if c.html, err = e.liquid.ParseString(flatten(htmlSrc)); err != nil {
		return nil, fmt.Errorf("parse %s html: %w", leaf.Name, err)
	}
	if !c.autoText {
		if c.text, err = e.liquid.ParseString(flatten(textSrc)); err != nil {
			return nil, fmt.Errorf("parse %s plaintext: %w", leaf.Name, err)
		}
	}
	return c, nil
}
