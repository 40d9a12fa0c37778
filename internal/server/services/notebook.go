// Package services holds the notebook's application services: the
// submission-to-storage pipeline and the image archival helpers.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/thepicklr/notebook/internal/common"
	"github.com/thepicklr/notebook/internal/dbx"
	"github.com/thepicklr/notebook/internal/logging"
	"github.com/thepicklr/notebook/internal/server/models"
	"github.com/thepicklr/notebook/internal/server/repositories/repomanager"
)

// Notifier is the outbound notification sink. Posting is fire-and-forget
// from the pipeline's point of view; a failed post is logged, never retried.
type Notifier interface {
	Post(ctx context.Context, channel, text string) error
}

// Notebook is the submission-to-storage pipeline plus the read side used by
// the viewer and the chat summaries.
type Notebook struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	notifier   Notifier
	errChannel string
	logger     logging.Logger
}

func NewNotebook(db *sql.DB, repos repomanager.RepositoryManager, notifier Notifier, errChannel string, logger logging.Logger) *Notebook {
	return &Notebook{
		db:         db,
		repos:      repos,
		notifier:   notifier,
		errChannel: errChannel,
		logger:     logger.With("module", "notebook"),
	}
}

// WriteEntry normalizes one canonical submission into the schema inside a
// single transaction: resolve users and project, insert the entry row, then
// the authorship, tag, image and project junction rows. Any failure rolls
// the whole thing back and reports it to the error channel with the
// submitter's name for context before propagating.
func (s *Notebook) WriteEntry(ctx context.Context, sub *models.Submission) (int64, error) {
	if sub.SubmittingUser == "" || sub.ProjectName == "" {
		return 0, fmt.Errorf("%w: submitting user and project name are required", common.ErrorValidation)
	}

	if err := s.db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrorStorageUnavailable, err)
	}

	var entryID int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userRepo := s.repos.Users(tx)
		projectRepo := s.repos.Projects(tx)
		tagRepo := s.repos.Tags(tx)
		imageRepo := s.repos.Images(tx)
		entryRepo := s.repos.Entries(tx)

		userIDs := map[string]int64{}
		for _, name := range distinctNames(sub.SubmittingUser, sub.SelectedUsers) {
			id, err := userRepo.GetOrCreate(ctx, name)
			if err != nil {
				return err
			}
			userIDs[name] = id
		}

		projectID, err := projectRepo.GetOrCreate(ctx, sub.ProjectName)
		if err != nil {
			return err
		}

		entryID, err = entryRepo.Create(ctx, sub.WhatDid, sub.WhatLearned, sub.Milestone, sub.SubmittingUser)
		if err != nil {
			return err
		}

		// Authorship is exactly the participant set; the submitter is tracked
		// separately via creator_name.
		for _, name := range sub.SelectedUsers {
			if err := entryRepo.AddAuthor(ctx, entryID, userIDs[name]); err != nil {
				return err
			}
		}

		if sub.Category != "" {
			tagID, err := tagRepo.GetOrCreate(ctx, sub.Category)
			if err != nil {
				return err
			}
			if err := entryRepo.AddTag(ctx, entryID, tagID); err != nil {
				return err
			}
			if sub.IsNewProject {
				if err := projectRepo.LinkTag(ctx, projectID, tagID); err != nil {
					return err
				}
				if err := projectRepo.LinkStatus(ctx, projectID, "active"); err != nil {
					return err
				}
			}
		}

		for _, f := range sub.Files {
			imgID, err := imageRepo.Create(ctx, f.FileName, f.FileURL)
			if err != nil {
				return err
			}
			if err := entryRepo.AddImage(ctx, entryID, imgID); err != nil {
				return err
			}
		}

		return entryRepo.LinkProject(ctx, projectID, entryID)
	})

	if err != nil {
		s.reportWriteFailure(ctx, sub.SubmittingUser, err)
		return 0, fmt.Errorf("entry write failed: %w", err)
	}

	return entryID, nil
}

func (s *Notebook) reportWriteFailure(ctx context.Context, submitter string, err error) {
	msg := fmt.Sprintf(
		"An error occurred during the database upload process for an entry by %s.\n\n*Error:*\n```%v```",
		submitter, err)
	if notifyErr := s.notifier.Post(ctx, s.errChannel, msg); notifyErr != nil {
		s.logger.Error(ctx, "failed to report write failure", "error", notifyErr)
	}
}

// FetchEntry returns the aggregate record for one entry, or nil when the id
// does not exist. Absence is an expected case, not an error.
func (s *Notebook) FetchEntry(ctx context.Context, id int64) (*models.Entry, error) {
	entry, err := s.repos.Entries(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

// FetchAllEntries returns every entry, newest first. No pagination: entry
// volume is club-scale.
func (s *Notebook) FetchAllEntries(ctx context.Context) ([]*models.Entry, error) {
	return s.repos.Entries(s.db).List(ctx)
}

// UpdateEntry re-resolves the project by name, replaces the entry's project
// link and overwrites the two text fields, all in one transaction. Authors,
// tags and images are untouched; id and created_at never change.
func (s *Notebook) UpdateEntry(ctx context.Context, id int64, whatDid, whatLearned, projectName string) error {
	if projectName == "" {
		return fmt.Errorf("%w: project name is required", common.ErrorValidation)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		projectID, err := s.repos.Projects(tx).GetOrCreate(ctx, projectName)
		if err != nil {
			return err
		}

		entryRepo := s.repos.Entries(tx)
		if err := entryRepo.UpdateContent(ctx, id, whatDid, whatLearned); err != nil {
			return err
		}
		return entryRepo.ReplaceProjectLink(ctx, id, projectID)
	})
}

// DeleteEntry removes the entry row; cascades clear its junction rows.
// Deleting a missing id is a no-op.
func (s *Notebook) DeleteEntry(ctx context.Context, id int64) error {
	err := s.repos.Entries(s.db).Delete(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	return err
}

// ListProjects returns all known project names for form option lists.
func (s *Notebook) ListProjects(ctx context.Context) ([]string, error) {
	return s.repos.Projects(s.db).List(ctx)
}

// ListTags returns the current tag vocabulary.
func (s *Notebook) ListTags(ctx context.Context) ([]string, error) {
	return s.repos.Tags(s.db).List(ctx)
}

// distinctNames yields the submitter plus participants with duplicates
// removed, order preserved.
func distinctNames(submitter string, participants []string) []string {
	seen := map[string]struct{}{submitter: {}}
	result := []string{submitter}
	for _, p := range participants {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		result = append(result, p)
	}
	return result
}
