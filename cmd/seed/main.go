// Command main runs the demo data seeder for Zeelink.
package main

import (
	"context"
	"flag"
	"log"

	"zeelink/internal/bootstrap"
	"zeelink/internal/config"
	"zeelink/internal/seed"
)

func main() {
	questions := flag.Bool("questions", true, "Seed the starter questions")
	demo := flag.Bool("demo", true, "Seed the demo identity and profile")
	province := flag.String("province", "กรุงเทพมหานคร", "Province for simulated profiles")
	count := flag.Int("count", 0, "Number of simulated profiles to create")
	fast := flag.Bool("fast", false, "Use the minimum bcrypt cost for the demo password")
	flag.Parse()

	log.Println("🌱 Zeelink Seeder")
	log.Println("=================")
	log.Printf("questions=%v demo=%v simulated=%d in %s\n", *questions, *demo, *count, *province)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	res, err := seed.NewSeeder(rt.Deps, rt.Store).Run(ctx, seed.Options{
		Questions:   *questions,
		DemoProfile: *demo,
		Province:    *province,
		Simulated:   *count,
		FastHash:    *fast,
	})
	if err != nil {
		rt.Close()
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Done: %d questions, %d simulated profiles\n", res.Questions, res.Simulated)
	if res.Demo != nil {
		log.Printf("📧 Demo login: %s / %s (%s)\n", seed.DemoEmail, seed.DemoPassword, rt.Store.ShareURL(res.Demo))
	}
}
