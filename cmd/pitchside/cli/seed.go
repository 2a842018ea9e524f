package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pitchside/pitchside/internal/blob"
	"github.com/pitchside/pitchside/internal/model"
)

// seedFile is the YAML layout accepted by the seed command: an optional
// bootstrap admin plus one list per content section.
type seedFile struct {
	Admin *struct {
		Email    string `yaml:"email"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"admin"`

	Fixtures []map[string]any `yaml:"fixtures"`
	News     []map[string]any `yaml:"news"`
	Players  []map[string]any `yaml:"players"`
	Sponsors []map[string]any `yaml:"sponsors"`
	Contacts []map[string]any `yaml:"contacts"`
	Teams    []map[string]any `yaml:"teams"`
	Gallery  []map[string]any `yaml:"gallery"`
	VPs      []map[string]any `yaml:"vps"`
	Settings map[string]any   `yaml:"settings"`
}

func newSeedCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load initial content from a YAML file",
		Long: `Load content collections, site settings, and optionally a bootstrap
super-admin from a YAML file. Existing collections are left untouched
unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(args[0], force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite collections that already exist")

	return cmd
}

func runSeed(path string, force bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	users, blobs, err := openUserService()
	if err != nil {
		return err
	}
	defer blobs.Close()
	ctx := context.Background()

	if seed.Admin != nil {
		user, err := users.CreateBootstrapUser(ctx, seed.Admin.Email, seed.Admin.Username, seed.Admin.Password)
		if err != nil {
			fmt.Printf("admin: skipped (%v)\n", err)
		} else {
			fmt.Printf("admin: created super-admin %q\n", user.Email)
		}
	}

	collections := []struct {
		name  string
		key   string
		items []map[string]any
	}{
		{"fixtures", model.KeyFixtures, seed.Fixtures},
		{"news", model.KeyNews, seed.News},
		{"players", model.KeyPlayers, seed.Players},
		{"sponsors", model.KeySponsors, seed.Sponsors},
		{"contacts", model.KeyContacts, seed.Contacts},
		{"teams", model.KeyTeams, seed.Teams},
		{"gallery", model.KeyGallery, seed.Gallery},
		{"vps", model.KeyVPs, seed.VPs},
	}
	for _, c := range collections {
		if len(c.items) == 0 {
			continue
		}
		if err := seedBlob(ctx, blobs, c.key, c.items, force); err != nil {
			if errors.Is(err, blob.ErrVersionConflict) {
				fmt.Printf("%s: skipped (already exists, use --force)\n", c.name)
				continue
			}
			return fmt.Errorf("seed %s: %w", c.name, err)
		}
		fmt.Printf("%s: loaded %d items\n", c.name, len(c.items))
	}

	if seed.Settings != nil {
		if err := seedBlob(ctx, blobs, model.KeySettings, seed.Settings, force); err != nil {
			if errors.Is(err, blob.ErrVersionConflict) {
				fmt.Println("settings: skipped (already exists, use --force)")
			} else {
				return fmt.Errorf("seed settings: %w", err)
			}
		} else {
			fmt.Println("settings: loaded")
		}
	}

	return nil
}

// seedBlob writes v as JSON under key. Without force the write is
// create-only and fails with ErrVersionConflict when the key exists.
func seedBlob(ctx context.Context, blobs blob.Store, key string, v any, force bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	version := int64(0)
	if force {
		_, current, err := blobs.Get(ctx, key)
		if err != nil && !errors.Is(err, blob.ErrNotFound) {
			return err
		}
		version = current
	}
	_, err = blobs.Put(ctx, key, data, version)
	return err
}
