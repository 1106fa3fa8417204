package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"invoicelens/internal/config"
	"invoicelens/internal/repository/postgres"
	"invoicelens/internal/service"
)

const usage = "Usage: apikey [create NAME|list|revoke ID]"

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	svc := service.NewAPIKeyService(postgres.NewAPIKeyRepo(db), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd := os.Args[1]; cmd {
	case "create":
		if len(os.Args) < 3 {
			log.Fatal("usage: apikey create NAME")
		}
		created, err := svc.Create(ctx, strings.Join(os.Args[2:], " "))
		if err != nil {
			log.Fatalf("create failed: %v", err)
		}
		fmt.Printf("id:     %s\nname:   %s\nprefix: %s\n\n", created.Key.ID, created.Key.Name, created.Key.Prefix)
		fmt.Printf("%s\n\nStore this key now; it cannot be shown again.\n", created.Token)

	case "list":
		keys, err := svc.List(ctx)
		if err != nil {
			log.Fatalf("list failed: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPREFIX\tCREATED\tLAST USED\tREVOKED")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				k.ID, k.Name, k.Prefix, k.CreatedAt.UTC().Format(time.RFC3339),
				formatTime(k.LastUsedAt), formatTime(k.RevokedAt))
		}
		_ = w.Flush()

	case "revoke":
		if len(os.Args) < 3 {
			log.Fatal("usage: apikey revoke ID")
		}
		id, err := uuid.Parse(os.Args[2])
		if err != nil {
			log.Fatalf("invalid key id: %v", err)
		}
		if err := svc.Revoke(ctx, id); err != nil {
			log.Fatalf("revoke failed: %v", err)
		}
		log.Printf("api key %s revoked", id)

	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
