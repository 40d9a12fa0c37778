// Package entries provides the PostgreSQL-backed entry repository: the entry
// row itself, its junction rows, and the aggregate read used by the viewer
// and the chat summaries.
package entries

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thepicklr/notebook/internal/common"
	"github.com/thepicklr/notebook/internal/dbx"
	"github.com/thepicklr/notebook/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, whatDid, whatLearned string, milestone bool, creator string) (int64, error) {
	query := `
		INSERT INTO entries (what_did, what_learned, is_milestone, creator_name)
		VALUES ($1, $2, $3, $4)
		RETURNING entry_id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, whatDid, whatLearned, milestone, creator).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) AddAuthor(ctx context.Context, entryID, userID int64) error {
	return r.link(ctx,
		`INSERT INTO entry_author (entry_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		entryID, userID)
}

func (r *PostgresRepository) AddTag(ctx context.Context, entryID, tagID int64) error {
	return r.link(ctx,
		`INSERT INTO entry_tags (entry_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		entryID, tagID)
}

func (r *PostgresRepository) AddImage(ctx context.Context, entryID, imgID int64) error {
	return r.link(ctx,
		`INSERT INTO entry_imgs (entry_id, img_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		entryID, imgID)
}

func (r *PostgresRepository) LinkProject(ctx context.Context, projectID, entryID int64) error {
	return r.link(ctx,
		`INSERT INTO project_entries (project_id, entry_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		projectID, entryID)
}

func (r *PostgresRepository) link(ctx context.Context, query string, a, b int64) error {
	if _, err := r.db.ExecContext(ctx, query, a, b); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ReplaceProjectLink(ctx context.Context, entryID, projectID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM project_entries WHERE entry_id = $1`, entryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return r.link(ctx,
		`INSERT INTO project_entries (project_id, entry_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		projectID, entryID)
}

// UpdateContent overwrites the two text columns; entry_id and created_at
// never change.
func (r *PostgresRepository) UpdateContent(ctx context.Context, entryID int64, whatDid, whatLearned string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE entries SET what_did = $2, what_learned = $3 WHERE entry_id = $1`,
		entryID, whatDid, whatLearned)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Delete removes the entry row; ON DELETE CASCADE clears all five entry
// junctions. Referenced users, tags, projects and images survive.
func (r *PostgresRepository) Delete(ctx context.Context, entryID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE entry_id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// aggregateQuery left-joins every junction so entries with no authors, tags
// or images still come back. The row multiplication the joins produce is
// folded away in foldRows.
const aggregateQuery = `
	SELECT e.entry_id, e.what_did, e.what_learned, e.is_milestone,
		COALESCE(e.creator_name, ''), e.created_at,
		COALESCE(p.project_name, ''),
		COALESCE(u.user_name, ''),
		COALESCE(t.tag_name, ''),
		COALESCE(i.img_name, ''), COALESCE(i.img_data, '')
	FROM entries e
	LEFT JOIN project_entries pe ON pe.entry_id = e.entry_id
	LEFT JOIN projects p ON p.project_id = pe.project_id
	LEFT JOIN entry_author ea ON ea.entry_id = e.entry_id
	LEFT JOIN users u ON u.user_id = ea.user_id
	LEFT JOIN entry_tags et ON et.entry_id = e.entry_id
	LEFT JOIN tags t ON t.tag_id = et.tag_id
	LEFT JOIN entry_imgs ei ON ei.entry_id = e.entry_id
	LEFT JOIN img i ON i.img_id = ei.img_id
`

func (r *PostgresRepository) GetByID(ctx context.Context, entryID int64) (*models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, aggregateQuery+` WHERE e.entry_id = $1`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to select entry: %w", err)
	}
	defer rows.Close()

	result, err := foldRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, common.ErrorNotFound
	}
	return result[0], nil
}

// List returns one aggregate record per entry, newest first; ties on
// created_at break by entry id descending.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		aggregateQuery+` ORDER BY e.created_at DESC, e.entry_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	return foldRows(rows)
}

// foldRows collapses the joined result set into one Entry per entry id,
// deduplicating authors, tags and images. Entry order follows first
// appearance in the result set, which the callers' ORDER BY controls.
func foldRows(rows *sql.Rows) ([]*models.Entry, error) {
	var (
		order []int64
		byID  = map[int64]*models.Entry{}
		seen  = map[int64]map[string]struct{}{}
	)

	for rows.Next() {
		var (
			e                    models.Entry
			project, author, tag string
			imgName, imgURL      string
		)
		if err := rows.Scan(
			&e.ID, &e.WhatDid, &e.WhatLearned, &e.Milestone, &e.CreatorName, &e.CreatedAt,
			&project, &author, &tag, &imgName, &imgURL,
		); err != nil {
			return nil, err
		}

		agg, ok := byID[e.ID]
		if !ok {
			e.Authors = []string{}
			e.Tags = []string{}
			e.Images = []models.FileRef{}
			agg = &e
			byID[e.ID] = agg
			seen[e.ID] = map[string]struct{}{}
			order = append(order, e.ID)
		}

		if project != "" {
			agg.Project = project
		}
		mark := seen[agg.ID]
		if author != "" {
			if _, dup := mark["a:"+author]; !dup {
				mark["a:"+author] = struct{}{}
				agg.Authors = append(agg.Authors, author)
			}
		}
		if tag != "" {
			if _, dup := mark["t:"+tag]; !dup {
				mark["t:"+tag] = struct{}{}
				agg.Tags = append(agg.Tags, tag)
			}
		}
		if imgName != "" || imgURL != "" {
			key := "i:" + imgName + "|" + imgURL
			if _, dup := mark[key]; !dup {
				mark[key] = struct{}{}
				agg.Images = append(agg.Images, models.FileRef{FileName: imgName, FileURL: imgURL})
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]*models.Entry, 0, len(order))
	for _, id := range order {
		result = append(result, byID[id])
	}
	return result, nil
}
