// Package router derives queue-record creation from a validated triage
// result. Each of the three destinations gets at most one record per mention:
// the pre-existing relation on the mention is the idempotency guard, checked
// immediately before creation.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/contentops/social-listening-bot/internal/contract"
	"github.com/contentops/social-listening-bot/internal/models"
	"github.com/contentops/social-listening-bot/internal/workspace"
	"github.com/sirupsen/logrus"
)

// Destination is one downstream queue.
type Destination string

const (
	DestLead       Destination = "Lead"
	DestReputation Destination = "Reputation"
	DestContent    Destination = "Content"
)

// Relation property names on the Mentions collection, one per destination.
const (
	RelationLead       = "Leads Queue"
	RelationReputation = "Reputation Queue"
	RelationContent    = "Content Queue"
)

// Relations reports which queue relations already exist on a mention.
type Relations struct {
	Lead       bool
	Reputation bool
	Content    bool
}

// RelationsFromRecord reads the existing queue links off a mention record.
func RelationsFromRecord(record *workspace.Record) Relations {
	return Relations{
		Lead:       len(record.Prop(RelationLead).RelationIDs()) > 0,
		Reputation: len(record.Prop(RelationReputation).RelationIDs()) > 0,
		Content:    len(record.Prop(RelationContent).RelationIDs()) > 0,
	}
}

type target struct {
	destination Destination
	databaseID  string
	titleProp   string
	relation    string
}

// Router creates queue records for routed mentions.
type Router struct {
	ws      workspace.WorkspaceInterface
	targets []target
}

// New builds a router, introspecting each destination collection for its
// title property. A destination collection without a title property is a
// configuration failure and aborts startup.
func New(ctx context.Context, ws workspace.WorkspaceInterface, cfg *config.Config) (*Router, error) {
	r := &Router{ws: ws}

	for _, spec := range []struct {
		destination Destination
		databaseID  string
		relation    string
	}{
		{DestLead, cfg.LeadsDBID, RelationLead},
		{DestReputation, cfg.ReputationDBID, RelationReputation},
		{DestContent, cfg.ContentDBID, RelationContent},
	} {
		db, err := ws.GetDatabase(ctx, spec.databaseID)
		if err != nil {
			return nil, fmt.Errorf("failed to introspect %s queue database: %w", strings.ToLower(string(spec.destination)), err)
		}
		titleProp, err := db.TitleProperty()
		if err != nil {
			return nil, fmt.Errorf("%s queue database unusable: %w", strings.ToLower(string(spec.destination)), err)
		}
		r.targets = append(r.targets, target{
			destination: spec.destination,
			databaseID:  spec.databaseID,
			titleProp:   titleProp,
			relation:    spec.relation,
		})
	}

	return r, nil
}

// Route creates a queue record for every destination whose route flag is true
// and which has no existing relation on the mention, then links the mention
// to the new record. Creation and linking are two separate writes: when the
// link update fails the created record is orphaned — that is surfaced loudly
// and accepted, not rolled back or retried.
func (r *Router) Route(ctx context.Context, mentionID string, mention models.Mention, existing Relations, result *contract.TriageResult) ([]Destination, error) {
	var created []Destination

	for _, t := range r.targets {
		routed, title := routeFor(t.destination, result)
		if !routed {
			continue
		}
		if hasRelation(t.destination, existing) {
			logrus.Debugf("%s queue record already linked for mention %s, skipping", t.destination, mentionID)
			continue
		}

		title = strings.TrimSpace(title)
		if title == "" {
			title = fmt.Sprintf("%s — %s — %s", t.destination, mention.Platform, mention.Author)
		}

		recordID, err := r.ws.CreatePage(ctx, t.databaseID, map[string]any{
			t.titleProp: workspace.Title(title),
		})
		if err != nil {
			return created, fmt.Errorf("failed to create %s queue record for mention %s: %w",
				strings.ToLower(string(t.destination)), mentionID, err)
		}

		if err := r.ws.UpdatePage(ctx, mentionID, map[string]any{
			t.relation: workspace.Relation(recordID),
		}); err != nil {
			// The record exists but the mention does not point at it. The
			// idempotency check reads the mention side, so the next run will
			// neither re-create nor re-link it.
			logrus.Errorf("ORPHANED %s queue record %s: created for mention %s but relation link failed: %v",
				t.destination, recordID, mentionID, err)
			return created, fmt.Errorf("failed to link %s queue record %s to mention %s: %w",
				strings.ToLower(string(t.destination)), recordID, mentionID, err)
		}

		logrus.Infof("Created %s queue record %s for mention %s", t.destination, recordID, mentionID)
		created = append(created, t.destination)
	}

	return created, nil
}

func routeFor(d Destination, result *contract.TriageResult) (bool, string) {
	switch d {
	case DestLead:
		return result.Routes.Lead, result.Lead.Title
	case DestReputation:
		return result.Routes.Reputation, result.Reputation.Title
	case DestContent:
		return result.Routes.Content, result.Content.Title
	}
	return false, ""
}

func hasRelation(d Destination, existing Relations) bool {
	switch d {
	case DestLead:
		return existing.Lead
	case DestReputation:
		return existing.Reputation
	case DestContent:
		return existing.Content
	}
	return false
}
