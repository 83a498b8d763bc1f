package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/auth"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/store"
	"gopkg.in/yaml.v3"
)

// seedOwner is one entry of the owner seed file:
//
//	- name: alice
//	  password: s3cret
//	  roles: [MANAGER]
type seedOwner struct {
	Name     string   `yaml:"name"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

func loadSeedFile(path string) ([]seedOwner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var owners []seedOwner
	if err := yaml.Unmarshal(data, &owners); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(owners))
	for i := range owners {
		owners[i].Name = strings.TrimSpace(owners[i].Name)
		if owners[i].Name == "" {
			return nil, fmt.Errorf("seed entry %d: name is required", i)
		}
		if owners[i].Password == "" {
			return nil, fmt.Errorf("seed entry %q: password is required", owners[i].Name)
		}
		if seen[owners[i].Name] {
			return nil, fmt.Errorf("seed entry %q: duplicate name", owners[i].Name)
		}
		seen[owners[i].Name] = true

		if len(owners[i].Roles) == 0 {
			owners[i].Roles = []string{models.RoleManager}
		}
	}

	return owners, nil
}

// seedOwners writes every owner in the seed file with a bcrypt hashed password,
// replacing the credentials and roles of owners that already exist.
func seedOwners(ctx context.Context, owners store.OwnerStore, path string) (int, error) {
	entries, err := loadSeedFile(path)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		hash, err := auth.HashPassword(entry.Password)
		if err != nil {
			return 0, fmt.Errorf("seed entry %q: %w", entry.Name, err)
		}

		owner, err := owners.PutOwner(ctx, &models.Owner{
			Name:           entry.Name,
			CredentialHash: hash,
			Roles:          entry.Roles,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to seed owner %q: %w", entry.Name, err)
		}

		log.Debug().Str("owner", owner.Name).Strs("roles", owner.Roles).Msg("Seeded owner")
	}

	return len(entries), nil
}
