package slack

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thepicklr/notebook/internal/common"
	"github.com/thepicklr/notebook/internal/server/models"
)

// Interaction payload types the handler dispatches on.
const (
	TypeViewSubmission = "view_submission"
	TypeBlockActions   = "block_actions"
)

// Modal callback ids. Each entry modal carries its category in the id.
const (
	CallbackMechanicalEntry  = "mechanical_entry_modal"
	CallbackProgrammingEntry = "programming_entry_modal"
	CallbackOutreachEntry    = "outreach_modal"
	CallbackScoutEntry       = "scout_modal"
)

// NewProjectSentinel is the static-select option value meaning the submitter
// typed a project name instead of picking an existing one.
const NewProjectSentinel = "_new_"

// Block and action ids of the entry modal. The parser is strict about these:
// a missing block means a malformed or stale modal, not optional input.
const (
	blockProject    = "project_block"
	actionProject   = "project_select"
	blockNewProject = "new_project_block"
	actionNewName   = "new_project_name"
	blockUsers      = "users_block"
	actionUsers     = "users_select"
	blockDid        = "did_block"
	actionDid       = "did_input"
	blockLearned    = "learned_block"
	actionLearned   = "learned_input"
	blockMilestone  = "milestone_block"
	actionMilestone = "milestone_input"
	blockFiles      = "files_block"
	actionFiles     = "file_input"
)

// InteractionPayload is the decoded "payload" form field of an interactivity
// request. Only the fields the bot reads are mapped.
type InteractionPayload struct {
	Type      string `json:"type"`
	TriggerID string `json:"trigger_id"`
	User      struct {
		ID string `json:"id"`
	} `json:"user"`
	View struct {
		CallbackID string `json:"callback_id"`
		State      struct {
			Values map[string]map[string]blockValue `json:"values"`
		} `json:"state"`
	} `json:"view"`
}

type blockValue struct {
	Value          string `json:"value"`
	SelectedOption *struct {
		Value string `json:"value"`
	} `json:"selected_option"`
	SelectedOptions []struct {
		Value string `json:"value"`
	} `json:"selected_options"`
	SelectedUsers []string `json:"selected_users"`
	Files         []struct {
		Name       string `json:"name"`
		URLPrivate string `json:"url_private"`
	} `json:"files"`
}

// ParsePayload decodes the interaction JSON carried in the request form.
func ParsePayload(raw string) (*InteractionPayload, error) {
	var p InteractionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("interaction payload decode failed: %w", err)
	}
	return &p, nil
}

// EntryCategory maps an entry modal callback id to its notebook category.
// Returns "" for callback ids that are not notebook entry modals.
func EntryCategory(callbackID string) string {
	switch callbackID {
	case CallbackMechanicalEntry:
		return "mechanical"
	case CallbackProgrammingEntry:
		return "programming"
	case CallbackOutreachEntry:
		return "outreach"
	default:
		return ""
	}
}

// UserResolver turns a platform user id into a display name. Satisfied by
// Client.UserRealName.
type UserResolver func(ctx context.Context, userID string) (string, error)

// Block and action ids of the scouting modal.
const (
	blockScoutTeam    = "team_block"
	actionScoutTeam   = "team_input"
	blockScoutAuto    = "auto_block"
	actionScoutAuto   = "auto_input"
	blockScoutTeleop  = "teleop_block"
	actionScoutTeleop = "teleop_input"
	blockScoutRating  = "rating_block"
	actionScoutRating = "rating_select"
)

// ScoutReport is a parsed scouting modal submission, destined for the
// scouting sheet rather than the notebook.
type ScoutReport struct {
	TeamNumber string
	AutoNotes  string
	DriverCtrl string
	Rating     string
}

// ParseScoutSubmission converts a scouting modal payload into a report row.
func ParseScoutSubmission(p *InteractionPayload) (*ScoutReport, error) {
	if p.View.CallbackID != CallbackScoutEntry {
		return nil, fmt.Errorf("%w: callback %q is not the scouting modal", common.ErrorValidation, p.View.CallbackID)
	}
	values := p.View.State.Values

	team, err := stateValue(values, blockScoutTeam, actionScoutTeam)
	if err != nil {
		return nil, err
	}
	auto, err := stateValue(values, blockScoutAuto, actionScoutAuto)
	if err != nil {
		return nil, err
	}
	teleop, err := stateValue(values, blockScoutTeleop, actionScoutTeleop)
	if err != nil {
		return nil, err
	}

	report := &ScoutReport{
		TeamNumber: team.Value,
		AutoNotes:  auto.Value,
		DriverCtrl: teleop.Value,
	}
	if rv, ok := values[blockScoutRating][actionScoutRating]; ok && rv.SelectedOption != nil {
		report.Rating = rv.SelectedOption.Value
	}
	return report, nil
}

// ParseEntrySubmission converts a view_submission payload from one of the
// entry modals into a canonical submission. User ids are resolved to real
// names through resolve; the submitting user resolves first so a failure
// surfaces before any roster work.
func ParseEntrySubmission(ctx context.Context, p *InteractionPayload, resolve UserResolver) (*models.Submission, error) {
	category := EntryCategory(p.View.CallbackID)
	if category == "" {
		return nil, fmt.Errorf("%w: callback %q is not an entry modal", common.ErrorValidation, p.View.CallbackID)
	}

	values := p.View.State.Values

	submitter, err := resolve(ctx, p.User.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving submitting user: %w", err)
	}

	usersVal, err := stateValue(values, blockUsers, actionUsers)
	if err != nil {
		return nil, err
	}
	participants := make([]string, 0, len(usersVal.SelectedUsers))
	for _, id := range usersVal.SelectedUsers {
		name, err := resolve(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolving selected user %s: %w", id, err)
		}
		participants = append(participants, name)
	}

	didVal, err := stateValue(values, blockDid, actionDid)
	if err != nil {
		return nil, err
	}
	learnedVal, err := stateValue(values, blockLearned, actionLearned)
	if err != nil {
		return nil, err
	}

	sub := &models.Submission{
		SubmittingUser: submitter,
		SelectedUsers:  participants,
		Category:       category,
		WhatDid:        didVal.Value,
		WhatLearned:    learnedVal.Value,
	}

	projVal, err := stateValue(values, blockProject, actionProject)
	if err != nil {
		return nil, err
	}
	if projVal.SelectedOption == nil {
		return nil, fmt.Errorf("%w: no project selected", common.ErrorValidation)
	}
	if projVal.SelectedOption.Value == NewProjectSentinel {
		nameVal, err := stateValue(values, blockNewProject, actionNewName)
		if err != nil {
			return nil, err
		}
		sub.ProjectName = nameVal.Value
		sub.IsNewProject = true
	} else {
		sub.ProjectName = projVal.SelectedOption.Value
	}

	// Milestone and files are optional inputs. Milestone is a checkbox.
	if ms, ok := values[blockMilestone][actionMilestone]; ok {
		sub.Milestone = len(ms.SelectedOptions) > 0
	}
	if fv, ok := values[blockFiles][actionFiles]; ok {
		for _, f := range fv.Files {
			sub.Files = append(sub.Files, models.FileRef{FileName: f.Name, FileURL: f.URLPrivate})
		}
	}

	return sub, nil
}

func stateValue(values map[string]map[string]blockValue, block, action string) (blockValue, error) {
	v, ok := values[block][action]
	if !ok {
		return blockValue{}, fmt.Errorf("%w: missing form value %s.%s", common.ErrorValidation, block, action)
	}
	return v, nil
}
