package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	mw "github.com/dromeas/triage/internal/api/middleware"
	"github.com/dromeas/triage/internal/store"
	"github.com/dromeas/triage/pkg/models"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	cmd.AddCommand(keysCreateCmd())
	return cmd
}

func keysCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the default tenant",
		Long: `Create an API key for the default tenant and print it. The raw key is shown
once; only its bcrypt hash is stored.`,
		Example: `  triagectl keys create --name dashboard --scopes read,triage
  triagectl keys create --name ops --scopes admin`,
		Args: cobra.NoArgs,
		RunE: runKeysCreate,
	}
	cmd.Flags().String("name", "", "key name (required)")
	cmd.Flags().StringSlice("scopes", []string{models.ScopeRead}, "scopes: read, triage, admin")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runKeysCreate(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	scopes, _ := cmd.Flags().GetStringSlice("scopes")

	name, scopes, err := validateKeyInput(name, scopes)
	if err != nil {
		return err
	}

	db, err := databaseConfig("")
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	pool, err := store.Connect(ctx, db)
	if err != nil {
		return err
	}
	defer pool.Close()

	s := store.NewPostgresStore(pool)
	tenant, err := s.GetDefaultTenant(ctx)
	if err != nil {
		return fmt.Errorf("load default tenant: %w", err)
	}

	key, raw, err := mw.NewAPIKey(tenant.ID, name, scopes)
	if err != nil {
		return err
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:     %s\n", key.ID)
	fmt.Fprintf(out, "name:   %s\n", key.Name)
	fmt.Fprintf(out, "scopes: %s\n", strings.Join(key.Scopes, ","))
	fmt.Fprintf(out, "key:    %s\n", raw)
	fmt.Fprintln(cmd.ErrOrStderr(), "Store this key now. It cannot be shown again.")
	return nil
}

func validateKeyInput(name string, scopes []string) (string, []string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, fmt.Errorf("--name is required")
	}

	seen := make(map[string]bool, len(scopes))
	var out []string
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		if !mw.ValidScope(s) {
			return "", nil, fmt.Errorf("unknown scope %q: use read, triage or admin", s)
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		out = []string{models.ScopeRead}
	}
	return name, out, nil
}
