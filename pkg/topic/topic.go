// Package topic routes dialog turns to skills.
//
// A [Skill] owns one topic: it knows how to mask, record, and produce
// responses for that topic's catalog. The [Manager] implements the
// dialog package's TopicManager surface over a registry of skills,
// dispatching each call to the skill selected for the turn.
package topic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/elsabot/elsabot/pkg/dialog"
)

// ErrUnknownTopic is returned when a turn selects a topic no skill
// serves.
var ErrUnknownTopic = errors.New("topic: no skill registered for topic")

// Skill serves one topic.
type Skill interface {
	// Name is the topic name, unique within a manager.
	Name() string

	// UpdateMask fills s.ResponseMask for this topic from the current
	// entity set. Skills without legality masks may no-op.
	UpdateMask(s *dialog.Status)

	// RecordResponse resolves a scripted response to its catalog entry
	// and records it as the ground-truth target for the turn.
	RecordResponse(canonical string, s *dialog.Status)

	// Respond produces the response for the turn, filling s.Response
	// and s.ResponseString.
	Respond(ctx context.Context, b *dialog.Batch, s *dialog.Status) error
}

// Router selects a topic name for a turn. A nil router always selects
// the first registered skill.
type Router func(s *dialog.Status) string

// ManagerConfig assembles a Manager.
type ManagerConfig struct {
	// Router selects the topic per turn. Optional.
	Router Router

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Manager dispatches dialog-core callbacks to registered skills. It
// implements dialog.TopicManager. Registration happens before the
// manager is shared; dispatch itself holds no locks.
type Manager struct {
	cfg    ManagerConfig
	skills []Skill
	byName map[string]Skill
}

var _ dialog.TopicManager = (*Manager)(nil)

// NewManager creates an empty skill registry.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg, byName: make(map[string]Skill)}
}

// Register adds a skill. Names must be unique.
func (m *Manager) Register(s Skill) error {
	if _, dup := m.byName[s.Name()]; dup {
		return fmt.Errorf("topic: skill %q already registered", s.Name())
	}
	m.skills = append(m.skills, s)
	m.byName[s.Name()] = s
	return nil
}

// Topics lists registered topic names in registration order.
func (m *Manager) Topics() []string {
	names := make([]string, len(m.skills))
	for i, s := range m.skills {
		names[i] = s.Name()
	}
	return names
}

// Topic selects the topic for a turn: the router's choice when one is
// configured and valid, otherwise the first registered skill.
func (m *Manager) Topic(s *dialog.Status) string {
	if m.cfg.Router != nil {
		if name := m.cfg.Router(s); name != "" {
			if _, ok := m.byName[name]; ok {
				return name
			}
			m.cfg.Logger.Warn("router selected unregistered topic", "topic", name)
		}
	}
	if len(m.skills) == 0 {
		return ""
	}
	return m.skills[0].Name()
}

// UpdateMasks delegates to the turn's skill.
func (m *Manager) UpdateMasks(s *dialog.Status) {
	if sk, ok := m.byName[s.Topic]; ok {
		sk.UpdateMask(s)
	}
}

// RecordResponse delegates to the turn's skill.
func (m *Manager) RecordResponse(canonical string, s *dialog.Status) {
	if sk, ok := m.byName[s.Topic]; ok {
		sk.RecordResponse(canonical, s)
		return
	}
	s.ResponseString = canonical
}

// Respond delegates to the turn's skill.
func (m *Manager) Respond(ctx context.Context, b *dialog.Batch, s *dialog.Status) error {
	sk, ok := m.byName[s.Topic]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, s.Topic)
	}
	return sk.Respond(ctx, b, s)
}
