package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/rohanthewiz/logger"

	"notesync/models"
	"notesync/remote"
	"notesync/sync"
	"notesync/web"
)

func main() {
	logger.SetLogLevel("info")

	cfg := sync.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	if cfg.StorePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
			log.Fatal("Failed to create data directory: ", err)
		}
	}

	store, err := models.OpenStore(cfg.StorePath)
	if err != nil {
		log.Fatal("Failed to open local store: ", err)
	}
	defer store.Close()

	if err := store.SeedDefaultCategories(); err != nil {
		log.Fatal("Failed to seed default categories: ", err)
	}

	// All collaborators are constructed here and handed down explicitly.
	session := remote.NewTokenSession()
	client := remote.NewClient(cfg.RemoteURL, cfg.APIKey, session)
	repo := sync.NewNoteRepository(client, store)
	social := sync.NewSocial(client, session)
	manager := sync.NewManager(store, repo, session)

	ctx := context.Background()

	// Re-sync on sign-in; abort any in-flight pass on sign-out.
	session.OnAuthChange(manager.HandleAuthChange(ctx))

	// Initial pass: category reconciliation always runs; note sync waits
	// for a session.
	manager.Start(ctx)

	srv := web.NewServer(cfg.ListenAddr, web.Deps{
		Store:   store,
		Manager: manager,
		Repo:    repo,
		Social:  social,
		Session: session,
	})
	log.Fatal(web.Run(srv, cfg.ListenAddr))
}
