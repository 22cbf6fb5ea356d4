package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/toolshed/marketplace/internal/adapters/database"
	"github.com/toolshed/marketplace/internal/application/services"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/infrastructure/clients/postgres"
	"github.com/toolshed/marketplace/internal/infrastructure/observability"
	"github.com/toolshed/marketplace/pkg/config"
)

const demoPassword = "toolshed-demo"

type seedUser struct {
	first, last, email string
	address            entities.Address
}

type seedTool struct {
	owner, name, description, category, maker string
	priceCents                                int64
	interval                                  entities.BillingInterval
	maxIntervals                              int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("toolshed-seed", cfg.Log.Env, cfg.Log.Level)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				user_messages,
				user_reviews,
				listings,
				tools,
				file_uploads,
				tool_makers,
				tool_categories,
				users,
				addresses
			CASCADE
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	addressRepo := database.NewAddressAdapter(pgClient)
	userRepo := database.NewUserAdapter(pgClient)
	lookupRepo := database.NewLookupAdapter(pgClient)
	toolRepo := database.NewToolAdapter(pgClient)
	listingRepo := database.NewListingAdapter(pgClient)
	messageRepo := database.NewMessageAdapter(pgClient)

	hash, err := services.HashPassword(demoPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to hash demo password")
	}

	// 1. Users with addresses. Coordinates are left for the geocoder.
	users := []seedUser{
		{"Alice", "Smith", "alice@example.com", entities.Address{LineOne: "12 Grand St", City: "New York", State: "NY", ZipCode: "10013"}},
		{"Bob", "Jones", "bob@example.com", entities.Address{LineOne: "400 W Monroe St", City: "Chicago", State: "IL", ZipCode: "60606"}},
		{"Carla", "Diaz", "carla@example.com", entities.Address{LineOne: "88 Main St", City: "Springfield", State: "IL", ZipCode: "62701"}},
		{"Dev", "Patel", "dev@example.com", entities.Address{LineOne: "1 SW Naito Pkwy", City: "Portland", State: "OR", ZipCode: "97204"}},
	}

	userIDs := make(map[string]string, len(users))
	now := time.Now().UTC()
	for _, u := range users {
		address := u.address
		address.ID = uuid.NewString()
		if err := addressRepo.Create(ctx, &address); err != nil {
			log.Error().Err(err).Str("email", u.email).Msg("failed to create address")
			continue
		}
		user := &entities.User{
			ID:           uuid.NewString(),
			FirstName:    u.first,
			LastName:     u.last,
			Email:        u.email,
			PasswordHash: hash,
			Active:       true,
			AddressID:    address.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			log.Error().Err(err).Str("email", u.email).Msg("failed to create user")
			continue
		}
		userIDs[u.first] = user.ID
	}

	// 2. Lookup tables
	lookupIDs := make(map[string]string)
	seedLookup := func(kind entities.LookupKind, names ...string) {
		for _, name := range names {
			entry := &entities.LookupEntry{ID: uuid.NewString(), Kind: kind, Name: name, CreatedAt: now}
			if err := lookupRepo.Create(ctx, entry); err != nil {
				log.Error().Err(err).Str("name", name).Msg("failed to create lookup entry")
				continue
			}
			lookupIDs[name] = entry.ID
		}
	}
	seedLookup(entities.LookupKindCategory, "Power Drills", "Saws", "Ladders", "Garden Equipment", "Pressure Washers")
	seedLookup(entities.LookupKindMaker, "DeWalt", "Makita", "Bosch", "Milwaukee", "Werner", "Karcher")

	// 3. Tools, each with one active listing
	tools := []seedTool{
		{"Alice", "Cordless Drill 20V", "Brushless hammer drill with two batteries", "Power Drills", "DeWalt", 1500, entities.BillingIntervalDay, 7},
		{"Alice", "Circular Saw", "7-1/4 inch saw with a fresh blade", "Saws", "Makita", 2000, entities.BillingIntervalDay, 5},
		{"Bob", "Extension Ladder 24ft", "Aluminium extension ladder", "Ladders", "Werner", 3500, entities.BillingIntervalWeek, 2},
		{"Bob", "Impact Drill", "Compact impact driver and drill kit", "Power Drills", "Milwaukee", 400, entities.BillingIntervalHour, 12},
		{"Carla", "Pressure Washer", "2000 PSI electric pressure washer", "Pressure Washers", "Karcher", 2500, entities.BillingIntervalDay, 3},
		{"Dev", "Hedge Trimmer", "Cordless hedge trimmer", "Garden Equipment", "Bosch", 1200, entities.BillingIntervalDay, 4},
	}

	for _, t := range tools {
		ownerID, ok := userIDs[t.owner]
		if !ok {
			continue
		}
		tool := &entities.Tool{
			ID:          uuid.NewString(),
			Name:        t.name,
			Description: t.description,
			OwnerID:     ownerID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if id, ok := lookupIDs[t.category]; ok {
			tool.ToolCategoryID = &id
		}
		if id, ok := lookupIDs[t.maker]; ok {
			tool.ToolMakerID = &id
		}
		if err := toolRepo.Create(ctx, tool); err != nil {
			log.Error().Err(err).Str("tool", t.name).Msg("failed to create tool")
			continue
		}

		listing := &entities.Listing{
			ID:                  uuid.NewString(),
			PriceCents:          t.priceCents,
			BillingInterval:     t.interval,
			MaxBillingIntervals: t.maxIntervals,
			ToolID:              tool.ID,
			Active:              true,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := listingRepo.Create(ctx, listing); err != nil {
			log.Error().Err(err).Str("tool", t.name).Msg("failed to create listing")
		}
	}

	// 4. A short conversation
	if alice, bob := userIDs["Alice"], userIDs["Bob"]; alice != "" && bob != "" {
		thread := []struct {
			from, to, content string
		}{
			{bob, alice, "Hi Alice, is the cordless drill free this weekend?"},
			{alice, bob, "Yes, Saturday and Sunday both work."},
			{bob, alice, "Great, I'll pick it up Saturday morning."},
		}
		for i, m := range thread {
			message := &entities.UserMessage{
				ID:          uuid.NewString(),
				SenderID:    m.from,
				RecipientID: m.to,
				Content:     m.content,
				CreatedAt:   now.Add(time.Duration(i) * time.Minute),
			}
			if err := messageRepo.Create(ctx, message); err != nil {
				log.Error().Err(err).Msg("failed to create message")
			}
		}
	}

	log.Info().
		Int("users", len(userIDs)).
		Int("tools", len(tools)).
		Str("password", demoPassword).
		Msg("seeding completed")
}
