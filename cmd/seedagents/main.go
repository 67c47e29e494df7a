package main

import (
	"context"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/shopnex/helpdesk/internal/auth"
	"github.com/shopnex/helpdesk/internal/chat"
	"github.com/shopnex/helpdesk/internal/config"
	"github.com/shopnex/helpdesk/internal/db"
)

type seedAgent struct {
	Name  string
	Email string
}

var agents = []seedAgent{
	{"Sarah Johnson", "sarah.j@shopnex.com"},
	{"Michael Chen", "michael.c@shopnex.com"},
	{"Emma Wilson", "emma.w@shopnex.com"},
	{"David Martinez", "david.m@shopnex.com"},
	{"Lisa Nguyen", "lisa.n@shopnex.com"},
	{"James Thompson", "james.t@shopnex.com"},
	{"Olivia Brown", "olivia.b@shopnex.com"},
	{"Daniel Kim", "daniel.k@shopnex.com"},
	{"Sophia Rodriguez", "sophia.r@shopnex.com"},
	{"Ethan Patel", "ethan.p@shopnex.com"},
}

func main() {
	cfg := config.Load()

	password := os.Getenv("SEED_AGENT_PASSWORD")
	if password == "" {
		password = "changeme123"
	}

	gdb := db.Connect(cfg.DBDSN)
	repo := chat.NewRepo(gdb)
	if err := repo.AutoMigrate(); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	ctx := context.Background()
	created := 0
	for _, s := range agents {
		if _, err := repo.GetAgentByEmail(ctx, s.Email); err == nil {
			log.Printf("skip %s, already exists", s.Email)
			continue
		}

		a := &chat.Agent{
			ID:           uuid.NewString(),
			Name:         s.Name,
			Email:        s.Email,
			PasswordHash: hash,
			Online:       false,
			Status:       chat.AgentOffline,
		}
		if err := repo.SaveAgent(ctx, a); err != nil {
			log.Fatalf("seed %s: %v", s.Email, err)
		}
		created++
	}

	log.Printf("seeded %d agents (%d skipped)", created, len(agents)-created)
}
