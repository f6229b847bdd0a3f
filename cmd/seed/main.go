// Package main seeds the schema database with the table DDL and a set of
// example entity schemas.
package main

import (
	"context"
	"fmt"
	"os"

	"metaform/internal/infrastructure/storage/postgres"
	"metaform/internal/infrastructure/storage/postgres/schema_repo"
	"metaform/internal/schema"
	"metaform/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema_repo.DDL); err != nil {
		log.Fatalw("failed to apply DDL", "error", err)
	}
	if _, err := pool.Exec(ctx, postgres.AuditDDL); err != nil {
		log.Fatalw("failed to apply audit DDL", "error", err)
	}
	log.Info("schema tables ready")

	store, err := schema_repo.NewStore(pool.Unwrap())
	if err != nil {
		log.Fatalw("failed to create schema store", "error", err)
	}

	validator := schema.NewValidator()
	for _, entity := range sampleSchemas() {
		result := validator.ValidateEntitySchema(entity)
		if !result.Success {
			log.Fatalw("sample schema invalid", "entityType", entity.ID, "errors", result.Errors)
		}
		if err := store.Save(ctx, entity); err != nil {
			log.Fatalw("failed to save schema", "entityType", entity.ID, "error", err)
		}
		log.Infow("schema seeded", "entityType", entity.ID)
	}

	log.Info("seed complete")
}

func sampleSchemas() []*schema.EntitySchema {
	product := schema.NewEntitySchema("product", "Product").
		Plural("Products").
		Describe("Sellable goods and services").
		Icon("package").
		Endpoint("/api/data/products").
		PreloadLookup("categories", schema.OptionsSource{
			API: &schema.APIOptionsSource{
				Endpoint:     "/api/data/categories",
				ValueField:   "id",
				LabelField:   "name",
				ResponsePath: "data.items",
				CacheKey:     "cat",
				CacheTTL:     300,
			},
		}).
		Field(schema.Text("name").Label("Name").Required().Lengths(1, 200).Primary().Browsable(true).SearchWeight(10)).
		Field(schema.Text("sku").Label("SKU").Required().Pattern(`^[A-Z0-9-]+$`).Identifier().Browsable(true)).
		Field(schema.Select("category").Label("Category").Lookup("categories").Filterable()).
		Field(schema.Select("subcategory").Label("Subcategory").Source(schema.OptionsSource{
			API: &schema.APIOptionsSource{
				Endpoint:   "/api/data/subcategories?parent=${category}",
				ValueField: "id",
				LabelField: "name",
				DependsOn:  []string{"category"},
				LoadWhen:   "category != null",
				CacheKey:   "subcat",
			},
			IncludeEmpty: true,
		})).
		Field(schema.Number("price").Label("Price").Required().Range(0, 1_000_000).Browsable(true)).
		Field(schema.NewField("description", schema.TypeTextarea).Label("Description")).
		Field(schema.Checkbox("onSale").Label("On sale")).
		Field(schema.Number("salePrice").Label("Sale price").VisibleWhen("onSale == true", "onSale").RequiredWhen("onSale == true", "onSale")).
		Field(schema.NewField("createdAt", schema.TypeDateTime).Label("Created").System().Readonly()).
		Field(schema.NewField("updatedAt", schema.TypeDateTime).Label("Updated").System().Readonly()).
		Features(schema.EntityFeatures{EnableMru: true, MruLimit: 5}).
		Build()

	customer := schema.NewEntitySchema("customer", "Customer").
		Plural("Customers").
		Endpoint("/api/data/customers").
		Field(schema.Text("name").Label("Name").Required().Primary().Browsable(true)).
		Field(schema.NewField("email", schema.TypeEmail).Label("Email").Required().Identifier()).
		Field(schema.NewField("phone", schema.TypePhone).Label("Phone")).
		Field(schema.Select("status").Label("Status").StaticOptions(
			schema.FieldOption{Value: "active", Label: "Active", IsDefault: true},
			schema.FieldOption{Value: "suspended", Label: "Suspended"},
			schema.FieldOption{Value: "closed", Label: "Closed"},
		).Filterable()).
		Field(schema.NewField("notes", schema.TypeTextarea).Label("Notes")).
		Build()

	return []*schema.EntitySchema{product, customer}
}
