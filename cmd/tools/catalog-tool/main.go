// cmd/tools/catalog-tool/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pgt-ticketing/internal/common/config"
	"pgt-ticketing/pkg/registry"
)

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "provision":
		err = runProvision(os.Args[2:])
	case "inventory":
		err = runInventory(os.Args[2:])
	case "help", "-h", "--help":
		help()
		return
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		help()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func runAdd(args []string) error {
	fs := pflag.NewFlagSet("add", pflag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	id := fs.String("id", "", "Resource ID (e.g., museumx)")
	displayName := fs.String("displayName", "", "Display name (e.g., Museum X)")
	description := fs.String("description", "", "Description")
	requiredTier := fs.String("requiredTier", "", "Required tier (base, silver, gold, platinum)")
	location := fs.String("location", "", "Location")
	tags := fs.String("tags", "", "Comma separated tags")
	fs.Parse(args)

	if *id == "" || *displayName == "" {
		fs.Usage()
		return fmt.Errorf("id and displayName are required for add")
	}

	res := registry.Resource{
		ID:           *id,
		DisplayName:  *displayName,
		Description:  *description,
		RequiredTier: *requiredTier,
		Location:     *location,
	}
	if err := addResource(*path, res, *tags); err != nil {
		return err
	}
	fmt.Printf("Added resource: %s\n", *id)
	return nil
}

func runUpdate(args []string) error {
	fs := pflag.NewFlagSet("update", pflag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	id := fs.String("id", "", "Resource ID to update")
	field := fs.String("field", "", "Field to update (displayName, description, requiredTier, location, tags)")
	value := fs.String("value", "", "New value for the field")
	fs.Parse(args)

	if *id == "" || *field == "" {
		fs.Usage()
		return fmt.Errorf("id and field are required for update")
	}
	if err := updateResource(*path, *id, *field, *value); err != nil {
		return err
	}
	fmt.Printf("Updated resource %s, field %s to %s\n", *id, *field, *value)
	return nil
}

func runValidate(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	fs.Parse(args)

	n, err := validateRegistry(*path)
	if err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	fmt.Printf("Registry validation passed. Found %d resources.\n", n)
	return nil
}

func runProvision(args []string) error {
	fs := pflag.NewFlagSet("provision", pflag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to config file")
	resourceID := fs.String("resource", "", "Resource ID to provision tickets for")
	codesFile := fs.String("codes-file", "", "File with one ticket code per line")
	codes := fs.StringSlice("code", nil, "Ticket code (repeatable)")
	fs.Parse(args)

	if *resourceID == "" {
		fs.Usage()
		return fmt.Errorf("resource is required for provision")
	}

	all := append([]string{}, *codes...)
	if *codesFile != "" {
		fromFile, err := readCodes(*codesFile)
		if err != nil {
			return err
		}
		all = append(all, fromFile...)
	}
	if len(all) == 0 {
		return fmt.Errorf("no ticket codes given; use --code or --codes-file")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	admin, closeFn, err := openAdmin(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	added, err := provision(ctx, admin, cfg, *resourceID, all)
	if err != nil {
		return err
	}
	fmt.Printf("Provisioned %d of %d codes for %s (%d already present)\n",
		added, len(dedupe(all)), *resourceID, len(dedupe(all))-added)
	return nil
}

func runInventory(args []string) error {
	fs := pflag.NewFlagSet("inventory", pflag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to config file")
	resourceID := fs.String("resource", "", "Resource ID; all catalog resources when empty")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	admin, closeFn, err := openAdmin(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	rows, err := inventory(ctx, admin, cfg, *resourceID)
	if err != nil {
		return err
	}
	printInventory(os.Stdout, rows)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	v := viper.New()
	if path != "" {
		v.Set("config", path)
	}
	cfg, err := config.LoadWith(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func help() {
	fmt.Print(`
Usage: catalog-tool <command> [flags]

Commands:
  add        Add a resource to the registry
  update     Update an existing resource's field
  validate   Validate the registry file
  provision  Insert ticket codes for a resource into the configured store
  inventory  Print available and claimed counts per resource
  help       Show this help message

Examples:
  catalog-tool add --id museumx --displayName "Museum X" --requiredTier silver
  catalog-tool update --id museumx --field requiredTier --value gold
  catalog-tool validate --path configs/resource-registry.json
  catalog-tool provision --config configs/config.yaml --resource museumx --codes-file codes.txt
  catalog-tool inventory --config configs/config.yaml

Use 'catalog-tool <command> -h' for more information about a command.
` + "\n")
}
