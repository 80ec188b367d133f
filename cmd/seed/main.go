package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"github.com/arfaar/swapfinity/internal/config"
	"github.com/arfaar/swapfinity/internal/db"
	"github.com/arfaar/swapfinity/internal/logging"
	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/repository"
)

type seedUser struct {
	ID    string
	Name  string
	Email string
}

type seedItem struct {
	Owner      string
	Title      string
	LookingFor string
	Category   model.Category
}

var demoUsers = []seedUser{
	{ID: "demo-aiko", Name: "Aiko", Email: "aiko@demo.swapfinity.app"},
	{ID: "demo-ben", Name: "Ben", Email: "ben@demo.swapfinity.app"},
	{ID: "demo-chen", Name: "Chen", Email: "chen@demo.swapfinity.app"},
}

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	var app *firebase.App
	if cfg.StoreBackend == config.BackendFirestore {
		var opts []option.ClientOption
		if cfg.GoogleCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
		}
		if app, err = firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...); err != nil {
			return fmt.Errorf("init firebase: %w", err)
		}
	}
	store, err := db.OpenStore(ctx, cfg, app, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	users := repository.NewUserRepository(store)
	items := repository.NewItemRepository(store)

	existing, err := demoItems(ctx, items)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if !strings.EqualFold(os.Getenv("FORCE_SEED"), "true") {
			log.Info("demo items already exist; skipping seed (set FORCE_SEED=true to override)", "count", len(existing))
			return nil
		}
		for _, it := range existing {
			if err := items.Delete(ctx, it.ID); err != nil {
				return fmt.Errorf("delete item %s: %w", it.ID, err)
			}
		}
	}

	names := map[string]string{}
	for _, u := range demoUsers {
		if err := users.Create(ctx, &model.UserProfile{ID: u.ID, Name: u.Name, Email: u.Email}); err != nil {
			return fmt.Errorf("create user %s: %w", u.ID, err)
		}
		names[u.ID] = u.Name
	}

	seeded := buildSeedItems()
	for idx, s := range seeded {
		it := &model.Item{
			Title:       s.Title,
			Description: fmt.Sprintf("%s in good condition, kept at home.", s.Title),
			LookingFor:  s.LookingFor,
			Image:       picsumURL(s.Category, idx+1),
			Category:    s.Category,
			UserID:      s.Owner,
			UserName:    names[s.Owner],
		}
		if err := items.Create(ctx, it); err != nil {
			return fmt.Errorf("create item %q: %w", s.Title, err)
		}
	}

	log.Info("seeded demo data", "users", len(demoUsers), "items", len(seeded))
	return nil
}

func demoItems(ctx context.Context, items repository.ItemRepository) ([]model.Item, error) {
	var out []model.Item
	for _, u := range demoUsers {
		list, err := items.ListByUser(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("list items of %s: %w", u.ID, err)
		}
		out = append(out, list...)
	}
	return out, nil
}

func buildSeedItems() []seedItem {
	type cat struct {
		Category   model.Category
		LookingFor string
		Titles     []string
	}
	categories := []cat{
		{model.CategoryBooks, "Novels or travel guides", []string{"Sci-fi anthology", "Japanese cookbook", "Graphic novel box set"}},
		{model.CategorySmallAppliances, "Kitchen tools", []string{"Electric kettle", "Hand blender", "Rice cooker 3-cup"}},
		{model.CategoryToys, "Board games", []string{"Building block kit", "1000-piece puzzle", "Wooden train set"}},
		{model.CategoryAccessories, "Bags or scarves", []string{"Canvas tote", "Leather card case", "Wool scarf"}},
		{model.CategoryOthers, "Anything useful", []string{"Cable organizer", "Travel adapter", "Desk lamp"}},
	}

	var out []seedItem
	for _, c := range categories {
		for i, t := range c.Titles {
			out = append(out, seedItem{
				Owner:      demoUsers[i%len(demoUsers)].ID,
				Title:      t,
				LookingFor: c.LookingFor,
				Category:   c.Category,
			})
		}
	}
	return out
}

func picsumURL(c model.Category, idx int) string {
	slug := strings.ReplaceAll(strings.ToLower(string(c)), " ", "-")
	return fmt.Sprintf("https://picsum.photos/seed/%s-%d/600/600", slug, idx)
}
