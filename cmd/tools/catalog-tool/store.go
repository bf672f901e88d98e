package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"pgt-ticketing/internal/catalog"
	"pgt-ticketing/internal/common/config"
	"pgt-ticketing/internal/common/database"
	"pgt-ticketing/internal/tickets"
	"pgt-ticketing/internal/tickets/pgstore"
	"pgt-ticketing/internal/tickets/redisstore"
)

// openAdmin connects to the durable store named in config. The in-process
// memory store and the store-less mode have nothing to provision.
func openAdmin(ctx context.Context, cfg *config.Config) (tickets.Admin, func(), error) {
	switch cfg.Tickets.Store {
	case config.StorePostgres:
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store := pgstore.New(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return store, func() { pg.Close() }, nil
	case config.StoreRedis:
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, nil, err
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, nil, err
		}
		return redisstore.New(rc.GetClient(), ""), func() { rc.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("tickets.store %q cannot be provisioned", cfg.Tickets.Store)
	}
}

// provision inserts codes for a catalog resource and returns how many were
// new.
func provision(ctx context.Context, admin tickets.Admin, cfg *config.Config, resourceID string, codes []string) (int, error) {
	cat, err := catalog.Load(cfg)
	if err != nil {
		return 0, err
	}
	res, ok := cat.Lookup(resourceID)
	if !ok {
		return 0, fmt.Errorf("resource %s is not in the catalog", resourceID)
	}
	return admin.Provision(ctx, res.ID, res.DisplayName, dedupe(codes))
}

func inventory(ctx context.Context, admin tickets.Admin, cfg *config.Config, resourceID string) ([]tickets.Inventory, error) {
	ids := []string{catalog.NormalizeID(resourceID)}
	if resourceID == "" {
		cat, err := catalog.Load(cfg)
		if err != nil {
			return nil, err
		}
		ids = cat.IDs()
	}

	rows := make([]tickets.Inventory, 0, len(ids))
	for _, id := range ids {
		inv, err := admin.Inventory(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("inventory for %s: %w", id, err)
		}
		rows = append(rows, inv)
	}
	return rows, nil
}

func printInventory(w io.Writer, rows []tickets.Inventory) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tAVAILABLE\tCLAIMED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", r.ResourceID, r.Available, r.Claimed)
	}
	tw.Flush()
}

// readCodes reads one code per line, ignoring blanks and # comments.
func readCodes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open codes file: %w", err)
	}
	defer f.Close()

	var codes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read codes file: %w", err)
	}
	return codes, nil
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
