// Command resetdb wipes the notebook database, re-runs the migrations, and
// optionally provisions a viewer login. Destructive; it asks first.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/thepicklr/notebook/internal/server/config"
	"github.com/thepicklr/notebook/internal/server/repositories/repomanager"
)

// Junction tables first so the drops never trip over foreign keys, then the
// entity tables, then goose's bookkeeping.
var dropOrder = []string{
	"entry_author",
	"entry_tags",
	"entry_imgs",
	"project_entries",
	"project_tags",
	"project_status",
	"entries",
	"img",
	"tags",
	"status_",
	"projects",
	"users",
	"goose_db_version",
}

func main() {
	userName := flag.String("user", "", "viewer account to provision after the reset")
	flag.Parse()

	cfg := config.LoadConfig()

	fmt.Printf("This will DROP all notebook tables at %s and recreate them.\n", cfg.DatabaseDSN)
	fmt.Print("Type 'yes' to continue: ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("reading confirmation: %v", err)
	}
	if strings.TrimSpace(answer) != "yes" {
		fmt.Println("Aborted.")
		return
	}

	ctx := context.Background()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	for _, table := range dropOrder {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			log.Fatalf("dropping %s: %v", table, err)
		}
	}
	fmt.Println("Tables dropped.")

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}
	fmt.Println("Schema recreated.")

	if *userName == "" {
		return
	}

	fmt.Printf("Password for viewer account %q: ", *userName)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatalf("reading password: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hashing password: %v", err)
	}

	usersRepo := rm.Users(db)
	if _, err := usersRepo.GetOrCreate(ctx, *userName); err != nil {
		log.Fatalf("creating user: %v", err)
	}
	if err := usersRepo.SetPassword(ctx, *userName, string(hash)); err != nil {
		log.Fatalf("setting password: %v", err)
	}
	fmt.Printf("Viewer account %q ready.\n", *userName)
}
