package topic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/elsabot/elsabot/pkg/dialog"
	"github.com/elsabot/elsabot/pkg/entity"
	"github.com/elsabot/elsabot/pkg/template"
	"github.com/elsabot/elsabot/pkg/tracker"
)

// GoalConfig assembles a GoalSkill.
type GoalConfig struct {
	// Name is the topic name.
	Name string

	// Templates is the response catalog, fully loaded and with masks
	// built. Required.
	Templates *template.Index

	// Tracker scores turns against the catalog. Required.
	Tracker *tracker.Tracker

	// Entities is the shared entity dictionary. Required.
	Entities *entity.Index

	// Hooks resolves template side effects. Optional; templates with
	// hooks need it.
	Hooks *Hooks

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// GoalSkill selects template responses with a learned tracker,
// constrained by the catalog's entity legality masks.
type GoalSkill struct {
	cfg GoalConfig
}

var _ Skill = (*GoalSkill)(nil)

// NewGoalSkill creates the skill.
func NewGoalSkill(cfg GoalConfig) (*GoalSkill, error) {
	if cfg.Templates == nil || cfg.Tracker == nil || cfg.Entities == nil {
		return nil, fmt.Errorf("topic: goal skill %q: templates, tracker and entities are required", cfg.Name)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GoalSkill{cfg: cfg}, nil
}

func (g *GoalSkill) Name() string { return g.cfg.Name }

// UpdateMask recomputes the legality vector from the session's entity
// set.
func (g *GoalSkill) UpdateMask(s *dialog.Status) {
	mt := g.cfg.Templates.Masks()
	if mt == nil {
		return
	}
	present := make(map[int]bool, len(s.Entities))
	for name := range s.Entities {
		present[g.cfg.Entities.NameID(name)] = true
	}
	s.ResponseMask[g.cfg.Name] = mt.Legal(present)
}

// RecordResponse resolves a scripted response back to its catalog
// entry. An unresolvable response still sets the text but carries no
// target, so the turn trains nothing for this topic.
func (g *GoalSkill) RecordResponse(canonical string, s *dialog.Status) {
	if id, ok := g.cfg.Templates.LookupText(canonical); ok {
		s.Response[g.cfg.Name] = id
	} else {
		g.cfg.Logger.Debug("scripted response not in catalog", "topic", g.cfg.Name, "text", canonical)
	}
	s.ResponseString = canonical
}

// Respond runs the tracker on the batch, takes the current turn's
// argmax template, renders it against the session entities, and fires
// its hooks.
func (g *GoalSkill) Respond(ctx context.Context, b *dialog.Batch, s *dialog.Status) error {
	ids, err := g.cfg.Tracker.Predict(ctx, b)
	if err != nil {
		return fmt.Errorf("topic: %s: %w", g.cfg.Name, err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("topic: %s: empty batch", g.cfg.Name)
	}
	id := ids[len(ids)-1]
	tmpl, ok := g.cfg.Templates.Get(id)
	if !ok {
		return fmt.Errorf("topic: %s: tracker selected unknown template %d", g.cfg.Name, id)
	}

	s.Response[g.cfg.Name] = id
	s.ResponseString = template.Render(tmpl.Text, s.Entities)
	if g.cfg.Hooks != nil {
		g.cfg.Hooks.Run(tmpl.Hooks, s)
	}
	return nil
}
