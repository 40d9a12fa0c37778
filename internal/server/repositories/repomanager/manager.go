package repomanager

import (
	"context"
	"database/sql"

	"github.com/thepicklr/notebook/internal/dbx"
	"github.com/thepicklr/notebook/internal/server/repositories/entries"
	"github.com/thepicklr/notebook/internal/server/repositories/images"
	"github.com/thepicklr/notebook/internal/server/repositories/projects"
	"github.com/thepicklr/notebook/internal/server/repositories/tags"
	"github.com/thepicklr/notebook/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a DBTX. Passing a *sql.Tx
// rebinds the whole set to one transaction, which is how the entry writer
// gets its all-or-nothing semantics.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Projects(db dbx.DBTX) projects.Repository
	Tags(db dbx.DBTX) tags.Repository
	Images(db dbx.DBTX) images.Repository
	Entries(db dbx.DBTX) entries.Repository
}
