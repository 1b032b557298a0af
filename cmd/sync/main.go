// Package main provides the sync CLI for skincare catalog indexing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/smartbeauty/skincare-rag/internal/catalog"
	"github.com/smartbeauty/skincare-rag/internal/embedding"
	"github.com/smartbeauty/skincare-rag/internal/ingest"
	"github.com/smartbeauty/skincare-rag/internal/storage"
)

var (
	flagRebuild        bool
	flagProductsOnly   bool
	flagConditionsOnly bool
)

var rootCmd = &cobra.Command{
	Use:   "skincare-sync",
	Short: "Skincare catalog indexing tool",
	Long:  "CLI tool for managing the skincare product and condition index in Qdrant",
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index catalog records into Qdrant",
	Long: `Embeds catalog records and upserts them into the vector store.

By default this is incremental: records already indexed are skipped,
so re-running against an unchanged catalog is a no-op. Use --rebuild
to clear the managed documents first and re-embed everything.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required)
  CATALOG_DB     Path to the catalog SQLite database (default: ./catalog.db)`,
	RunE: runSync,
}

var upsertCmd = &cobra.Command{
	Use:   "upsert <product|condition> <id>",
	Short: "Re-embed a single catalog record, replacing its document",
	Long: `Replaces the indexed document for one record. Use this after editing a
record's text; plain sync skips records that are already indexed.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpsert,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the catalog database with the built-in skin condition profiles",
	RunE:  runSeed,
}

var importCmd = &cobra.Command{
	Use:   "import <products.json>",
	Short: "Import products from a JSON file into the catalog database",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show document counts per collection",
	RunE:  runStatus,
}

func init() {
	syncCmd.Flags().BoolVar(&flagRebuild, "rebuild", false, "clear managed documents and re-embed everything")
	syncCmd.Flags().BoolVar(&flagProductsOnly, "products-only", false, "sync only the products collection")
	syncCmd.Flags().BoolVar(&flagConditionsOnly, "conditions-only", false, "sync only the skin conditions collection")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(upsertCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	if flagProductsOnly && flagConditionsOnly {
		return fmt.Errorf("--products-only and --conditions-only are mutually exclusive")
	}

	ctx := context.Background()
	start := time.Now()

	fmt.Println("Starting sync...")
	fmt.Println()

	// 1. Open the catalog database
	cat, err := catalog.Open(getEnv("CATALOG_DB", "./catalog.db"))
	if err != nil {
		return fmt.Errorf("Failed to open catalog: %w", err)
	}
	defer cat.Close()

	// 2. Connect to Qdrant
	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	fmt.Printf("Connecting to Qdrant at %s:%d...\n", qdrantHost, qdrantPort)
	store, err := storage.NewQdrantStorage(qdrantHost, qdrantPort)
	if err != nil {
		return fmt.Errorf("Failed to connect to Qdrant: %w", err)
	}
	defer store.Close()

	if err := store.Health(ctx); err != nil {
		return fmt.Errorf("Qdrant health check failed: %w", err)
	}
	fmt.Println("Qdrant healthy")

	// 3. Initialize embedding client
	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return fmt.Errorf("Failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // Use default batch size

	manager := ingest.NewManager(embedder, store, slog.Default())

	// 4. Sync each collection
	if !flagConditionsOnly {
		records, err := cat.Products(ctx)
		if err != nil {
			return fmt.Errorf("Failed to load products: %w", err)
		}
		if err := syncCollection(ctx, manager, storage.CollectionProducts, records); err != nil {
			return err
		}
	}
	if !flagProductsOnly {
		records, err := cat.Conditions(ctx)
		if err != nil {
			return fmt.Errorf("Failed to load conditions: %w", err)
		}
		if err := syncCollection(ctx, manager, storage.CollectionConditions, records); err != nil {
			return err
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))

	return nil
}

func syncCollection(ctx context.Context, manager *ingest.Manager, collection string, records []catalog.SourceRecord) error {
	fmt.Println()
	fmt.Printf("Syncing %d records into %q...\n", len(records), collection)

	result, err := manager.Sync(ctx, collection, records, flagRebuild)
	if err != nil {
		return fmt.Errorf("Sync of %q failed: %w", collection, err)
	}

	fmt.Printf("  Inserted: %d\n", result.Inserted)
	fmt.Printf("  Skipped:  %d\n", result.Skipped)
	fmt.Printf("  Deleted:  %d\n", result.Deleted)
	if result.Failed > 0 {
		fmt.Printf("  Failed:   %d\n", result.Failed)
		for _, failed := range result.Failures {
			fmt.Printf("  - %s/%s: %s\n", failed.Key.Table, failed.Key.ID, failed.Reason)
		}
	}

	return nil
}

func runUpsert(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	kind, id := args[0], args[1]

	cat, err := catalog.Open(getEnv("CATALOG_DB", "./catalog.db"))
	if err != nil {
		return fmt.Errorf("Failed to open catalog: %w", err)
	}
	defer cat.Close()

	var (
		records    []catalog.SourceRecord
		collection string
	)
	switch kind {
	case string(catalog.KindProduct):
		records, err = cat.Products(ctx)
		collection = storage.CollectionProducts
	case string(catalog.KindCondition):
		records, err = cat.Conditions(ctx)
		collection = storage.CollectionConditions
	default:
		return fmt.Errorf("unknown record kind %q, want product or condition", kind)
	}
	if err != nil {
		return fmt.Errorf("Failed to load records: %w", err)
	}

	var record *catalog.SourceRecord
	for i := range records {
		if records[i].ID == id {
			record = &records[i]
			break
		}
	}
	if record == nil {
		return fmt.Errorf("no %s with id %q in the catalog", kind, id)
	}

	store, err := storage.NewQdrantStorage(getEnv("QDRANT_HOST", "localhost"), getEnvInt("QDRANT_PORT", 6334))
	if err != nil {
		return fmt.Errorf("Failed to connect to Qdrant: %w", err)
	}
	defer store.Close()

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return fmt.Errorf("Failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0)

	manager := ingest.NewManager(embedder, store, slog.Default())
	if err := manager.Upsert(ctx, collection, *record); err != nil {
		return fmt.Errorf("Upsert failed: %w", err)
	}

	fmt.Printf("Replaced document for %s/%s in %q\n", kind, id, collection)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cat, err := catalog.Open(getEnv("CATALOG_DB", "./catalog.db"))
	if err != nil {
		return fmt.Errorf("Failed to open catalog: %w", err)
	}
	defer cat.Close()

	count, err := cat.SeedConditions(ctx)
	if err != nil {
		return fmt.Errorf("Failed to seed conditions: %w", err)
	}
	fmt.Printf("Seeded %d skin condition profiles\n", count)

	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("Failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	cat, err := catalog.Open(getEnv("CATALOG_DB", "./catalog.db"))
	if err != nil {
		return fmt.Errorf("Failed to open catalog: %w", err)
	}
	defer cat.Close()

	count, err := cat.ImportProducts(ctx, f)
	if err != nil {
		return fmt.Errorf("Import failed: %w", err)
	}
	fmt.Printf("Imported %d products\n", count)

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	store, err := storage.NewQdrantStorage(qdrantHost, qdrantPort)
	if err != nil {
		return fmt.Errorf("Failed to connect to Qdrant: %w", err)
	}
	defer store.Close()

	for _, collection := range []string{storage.CollectionProducts, storage.CollectionConditions} {
		count, err := store.CountDocuments(ctx, collection)
		if err != nil {
			fmt.Printf("  %s: unavailable (%v)\n", collection, err)
			continue
		}
		fmt.Printf("  %s: %d documents\n", collection, count)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
