// Package main provides operator utilities for Zeelink.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"zeelink/internal/bootstrap"
	"zeelink/internal/config"
	"zeelink/internal/database"
	"zeelink/internal/models"
	"zeelink/internal/store"

	"gorm.io/gorm"
)

// operator acts for the command line; it is never persisted.
var operator = &models.Identity{ID: "system:admin-cli", Name: "Operator", Role: models.RoleAdmin}

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin migrate                 - Create or update the schema")
	fmt.Println("  go run ./cmd/admin backup [dir]            - Write website-backup-<date>.json (default: backups)")
	fmt.Println("  go run ./cmd/admin restore <file>          - Restore a backup file")
	fmt.Println("  go run ./cmd/admin ban <identity_id>       - Ban an identity and hide its profile")
	fmt.Println("  go run ./cmd/admin delete <identity_id>    - Delete an identity and its profile")
	fmt.Println("  go run ./cmd/admin promote <email>         - Promote an identity to admin")
	fmt.Println("  go run ./cmd/admin demote <email>          - Demote an admin to user")
	fmt.Println("  go run ./cmd/admin list-admins             - List all admins")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	command := os.Args[1]
	arg := func() string {
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		return os.Args[2]
	}

	if command == "migrate" {
		db, err := database.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("✅ Schema is up to date")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	switch command {
	case "backup":
		dir := "backups"
		if len(os.Args) > 2 {
			dir = os.Args[2]
		}
		name, err := rt.Store.Backup(ctx, operator, store.FileExporter{Dir: dir})
		if err != nil {
			log.Fatalf("Backup failed: %v", err)
		}
		fmt.Printf("✅ Wrote %s/%s\n", strings.TrimRight(dir, "/"), name)

	case "restore":
		restore(ctx, rt, arg())

	case "ban":
		report("ban", rt.Store.BanIdentity(ctx, operator, arg()))

	case "delete":
		report("delete", rt.Store.DeleteIdentity(ctx, operator, arg()))

	case "promote":
		setRole(rt.DB, arg(), models.RoleAdmin)

	case "demote":
		setRole(rt.DB, arg(), models.RoleUser)

	case "list-admins":
		listAdmins(rt.DB)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func restore(ctx context.Context, rt *bootstrap.Runtime, path string) {
	blob, err := os.ReadFile(path) // #nosec G304: operator supplied path
	if err != nil {
		log.Fatalf("Failed to read backup: %v", err)
	}
	snap, err := store.DecodeSnapshot(blob)
	if err != nil {
		log.Fatalf("Invalid backup: %v", err)
	}
	report("restore", rt.Store.RestoreSnapshot(ctx, operator, snap))
	fmt.Printf("   %d profiles, %d questions, %d popups\n", len(snap.Profiles), len(snap.Questions), len(snap.Popups))
}

func report(action string, o store.Outcome) {
	if o.Err != nil {
		log.Fatalf("❌ %s failed (applied=%v persisted=%v): %v", action, o.Applied, o.Persisted, o.Err)
	}
	fmt.Printf("✅ %s done (applied=%v persisted=%v)\n", action, o.Applied, o.Persisted)
}

func setRole(db *gorm.DB, email string, role models.Role) {
	email = strings.ToLower(strings.TrimSpace(email))
	var identity models.Identity
	if err := db.Where("email = ?", email).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("Identity with email %s not found\n", email)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	if identity.Role == role {
		fmt.Printf("%s is already %s\n", identity.Email, role)
		return
	}

	if err := db.Model(&identity).Updates(map[string]any{"role": role, "updated_at": time.Now()}).Error; err != nil {
		log.Fatalf("Failed to update role: %v", err)
	}
	fmt.Printf("✅ %s (ID: %s) is now %s\n", identity.Email, identity.ID, role)
}

func listAdmins(db *gorm.DB) {
	var admins []models.Identity
	if err := db.Where("role = ?", models.RoleAdmin).Order("email").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Printf("ID: %s | Name: %s | Email: %s | Banned: %v\n", admin.ID, admin.Name, admin.Email, admin.IsBanned)
	}
	fmt.Println("─────────────────────────────────────")
}
