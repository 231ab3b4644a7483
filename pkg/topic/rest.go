package topic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elsabot/elsabot/pkg/dialog"
)

// RestConfig assembles a RestSkill.
type RestConfig struct {
	// Name is the topic name.
	Name string

	// URL is the remote responder endpoint. Required.
	URL string

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// RestSkill delegates a topic to a remote responder over HTTP. The
// request carries the canonical utterance and the session's entity
// map; the reply's response field becomes the turn's response.
type RestSkill struct {
	cfg RestConfig
}

var _ Skill = (*RestSkill)(nil)

type restRequest struct {
	Utterance string            `json:"utterance"`
	Entities  map[string]string `json:"entities,omitempty"`
}

type restResponse struct {
	Response string `json:"response"`
}

// NewRestSkill creates the skill.
func NewRestSkill(cfg RestConfig) (*RestSkill, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("topic: rest skill %q: url is required", cfg.Name)
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &RestSkill{cfg: cfg}, nil
}

func (r *RestSkill) Name() string { return r.cfg.Name }

// UpdateMask is a no-op: the catalog lives on the remote side.
func (r *RestSkill) UpdateMask(*dialog.Status) {}

// RecordResponse keeps the scripted text; the remote catalog is opaque.
func (r *RestSkill) RecordResponse(canonical string, s *dialog.Status) {
	s.ResponseString = canonical
}

// Respond posts the turn to the remote responder.
func (r *RestSkill) Respond(ctx context.Context, _ *dialog.Batch, s *dialog.Status) error {
	body, err := json.Marshal(restRequest{
		Utterance: s.UtteranceText,
		Entities:  s.Entities,
	})
	if err != nil {
		return fmt.Errorf("topic: %s: encode request: %w", r.cfg.Name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("topic: %s: build request: %w", r.cfg.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("topic: %s: post: %w", r.cfg.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("topic: %s: remote responder returned %s", r.cfg.Name, resp.Status)
	}

	var rr restResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("topic: %s: decode response: %w", r.cfg.Name, err)
	}
	s.ResponseString = rr.Response
	return nil
}
