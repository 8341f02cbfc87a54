// seed inserts a demo organization, senders, a session, and a batch of
// donor emails into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/givelift/send-scheduler/internal/infrastructure/postgres"
	"github.com/givelift/send-scheduler/internal/schedule"
	"github.com/google/uuid"
)

const (
	orgID     = "1f1e7c6a-0000-4000-8000-000000000001"
	sessionID = "1f1e7c6a-0000-4000-8000-000000000002"
	senderOK  = "1f1e7c6a-0000-4000-8000-000000000003"
	senderBad = "1f1e7c6a-0000-4000-8000-000000000004"
)

type donor struct {
	name  string
	email string
}

var donors = []donor{
	{"Ada Whitfield", "ada@donors.test"},
	{"Bram Okafor", "bram@donors.test"},
	{"Celia Marsh", "celia@donors.test"},
	{"Dev Ranganathan", "dev@donors.test"},
	{"Elif Yilmaz", "elif@donors.test"},
	{"Farid Haddad", "farid@donors.test"},
	{"Greta Lindqvist", "greta@donors.test"},
	{"Hugo Pereira", "hugo@donors.test"},
	{"Imani Njoroge", "imani@donors.test"},
	{"Jonas Keller", "jonas@donors.test"},
	{"Katya Morozova", "katya@donors.test"},
	{"Liam Donnelly", "liam@donors.test"},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	mustExec := func(query string, args ...any) {
		if _, err := pool.Exec(ctx, query, args...); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	mustExec(`
		INSERT INTO organizations (id, name)
		VALUES ($1, 'Riverbend Community Fund')
		ON CONFLICT (id) DO NOTHING`, orgID)

	mustExec(`
		INSERT INTO senders (id, organization_id, name, email, credential_status)
		VALUES ($1, $2, 'Maya Ortiz', 'maya@riverbend.test', 'connected')
		ON CONFLICT (id) DO NOTHING`, senderOK, orgID)
	mustExec(`
		INSERT INTO senders (id, organization_id, name, email, credential_status)
		VALUES ($1, $2, 'Sam Becker', 'sam@riverbend.test', 'disconnected')
		ON CONFLICT (id) DO NOTHING`, senderBad, orgID)

	mustExec(`
		INSERT INTO sessions (id, organization_id, name)
		VALUES ($1, $2, 'Spring appeal follow-up')
		ON CONFLICT (id) DO NOTHING`, sessionID, orgID)

	var inserted int
	for _, d := range donors {
		id := uuid.NewString()
		tag, err := pool.Exec(ctx, `
			INSERT INTO emails (
				id, session_id, organization_id, recipient_name,
				recipient_email, subject, body, sender_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT DO NOTHING`,
			id, sessionID, orgID, d.name, d.email,
			fmt.Sprintf("Thank you, %s", d.name),
			fmt.Sprintf("<p>Dear %s, thank you for supporting our spring appeal.</p>", d.name),
			senderOK,
		)
		if err != nil {
			log.Fatalf("insert email: %v", err)
		}
		inserted += int(tag.RowsAffected())
	}

	cfg := schedule.Default()
	repo := postgres.NewScheduleConfigRepository(pool)
	if err := repo.UpsertOrganization(ctx, orgID, cfg); err != nil {
		log.Fatalf("seed config: %v", err)
	}

	log.Printf("seeded org %s, session %s, %d emails", orgID, sessionID, inserted)
}
