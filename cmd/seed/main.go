package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/mundotango/mundo-tango-api/config"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

type seedUser struct {
	email, name, city string
	interests         []string
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dsn := cfg.PostgresDSN()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	password := "password123"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	users := []seedUser{
		{"ana@mundotango.dev", "Ana", "Buenos Aires", []string{"milonga", "vals", "festivals"}},
		{"ben@mundotango.dev", "Ben", "Buenos Aires", []string{"milonga", "nuevo"}},
		{"carla@mundotango.dev", "Carla", "Berlin", []string{"vals", "music"}},
	}
	ids := map[string]string{}
	for _, u := range users {
		var id string
		err = db.QueryRow(`
			INSERT INTO users (email, password_hash, name, city, interests)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (email) DO UPDATE SET name=EXCLUDED.name, city=EXCLUDED.city, interests=EXCLUDED.interests
			RETURNING id
		`, u.email, hash, u.name, u.city, u.interests).Scan(&id)
		if err != nil {
			log.Fatalf("failed to seed user %s: %v", u.email, err)
		}
		ids[u.name] = id
		fmt.Printf("seeded user: id=%s email=%s password=%s\n", id, u.email, password)
	}

	// Ana and Ben are friends; Carla follows Ana
	for _, f := range [][2]string{{"Ana", "Ben"}, {"Ben", "Ana"}, {"Carla", "Ana"}} {
		if _, err := db.Exec(`
			INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, ids[f[0]], ids[f[1]]); err != nil {
			log.Fatalf("failed to seed follow: %v", err)
		}
	}

	groupID := ensure(db, "groups", "name", "Milongueros de San Telmo", `
		INSERT INTO groups (name, description, city, tags, created_by)
		VALUES ($1, 'Weekly practica and milonga meetups', 'Buenos Aires', $2, $3)
		RETURNING id
	`, []string{"milonga", "practica"}, ids["Ana"])
	for name, role := range map[string]string{"Ana": "admin", "Ben": "member"} {
		if _, err := db.Exec(`
			INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, groupID, ids[name], role); err != nil {
			log.Fatalf("failed to seed membership: %v", err)
		}
	}

	ensure(db, "events", "title", "Milonga de los Lunes", `
		INSERT INTO events (title, description, city, venue, starts_at, organizer_id, tags)
		VALUES ($1, 'Traditional milonga with live orchestra', 'Buenos Aires', 'Salon Canning', $2, $3, $4)
		RETURNING id
	`, time.Now().Add(72*time.Hour).UTC(), ids["Ana"], []string{"milonga", "live"})
	ensure(db, "events", "title", "Berlin Vals Weekend", `
		INSERT INTO events (title, description, city, venue, starts_at, organizer_id, tags)
		VALUES ($1, 'Two days of vals workshops', 'Berlin', 'Ballhaus', $2, $3, $4)
		RETURNING id
	`, time.Now().Add(20*24*time.Hour).UTC(), ids["Carla"], []string{"vals", "festivals"})

	ensure(db, "host_homes", "title", "Room near Plaza Dorrego", `
		INSERT INTO host_homes (host_id, title, description, city, country, price_per_night)
		VALUES ($2, $1, 'Quiet room five minutes from the milongas', 'Buenos Aires', 'Argentina', 3500)
		RETURNING id
	`, ids["Ben"])

	tiers := []struct {
		name     string
		price    int64
		interval string
		features []string
		order    int
	}{
		{"Free", 0, "month", []string{"feed", "events", "groups"}, 1},
		{"Milonguero", 499, "month", []string{"recommendations", "digest emails", "group chat"}, 2},
		{"Organizer", 4999, "year", []string{"event promotion", "host homes", "priority support"}, 3},
	}
	for _, t := range tiers {
		if _, err := db.Exec(`
			INSERT INTO subscription_tiers (name, price_cents, billing_interval, features, sort_order)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (name) DO UPDATE SET price_cents=EXCLUDED.price_cents, features=EXCLUDED.features, sort_order=EXCLUDED.sort_order
		`, t.name, t.price, t.interval, t.features, t.order); err != nil {
			log.Fatalf("failed to seed tier %s: %v", t.name, err)
		}
	}
	fmt.Println("seed complete")
}

// ensure returns the id of the row in table whose column equals value,
// inserting it with insert (whose first argument must be value) when missing.
func ensure(db *sql.DB, table, column, value, insert string, args ...any) string {
	var id string
	err := db.QueryRow(fmt.Sprintf(`SELECT id FROM %s WHERE %s = $1 LIMIT 1`, table, column), value).Scan(&id)
	if err == nil {
		return id
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Fatalf("failed to look up %s: %v", table, err)
	}
	if err := db.QueryRow(insert, append([]any{value}, args...)...).Scan(&id); err != nil {
		log.Fatalf("failed to seed %s %q: %v", table, value, err)
	}
	fmt.Printf("seeded %s: id=%s %s=%s\n", table, id, column, value)
	return id
}
