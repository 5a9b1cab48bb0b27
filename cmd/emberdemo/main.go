// Command emberdemo exercises a running ember instance end to end: open,
// write, read, batch-commit, stat, merge, and close.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/emberkv/ember/pkg/ember"
	"github.com/emberkv/ember/pkg/options"
)

func main() {
	dir, err := os.MkdirTemp("", "emberdemo-*")
	if err != nil {
		log.Fatalf("failed to create demo directory: %v", err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	db, err := ember.NewInstance(ctx, "emberdemo",
		options.WithDataDir(dir),
		options.WithDataFileSize(1<<20),
		options.WithIndexType(options.TreeIndex),
	)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close(ctx)

	fmt.Println("=== ember demo ===")

	fmt.Println("\n[writing data]")
	users := map[string]string{
		"user:1001": `{"name":"Alice","city":"NYC"}`,
		"user:1002": `{"name":"Bob","city":"SF"}`,
		"user:1003": `{"name":"Charlie","city":"LA"}`,
	}
	for key, value := range users {
		if err := db.Set(ctx, key, []byte(value)); err != nil {
			log.Printf("PUT %s: %v", key, err)
			continue
		}
		fmt.Printf("  PUT %s\n", key)
	}

	fmt.Println("\n[reading data]")
	for key := range users {
		value, err := db.Get(ctx, key)
		if err != nil {
			log.Printf("GET %s: %v", key, err)
			continue
		}
		fmt.Printf("  GET %s -> %s\n", key, value)
	}

	fmt.Println("\n[batch commit]")
	batch, err := db.NewBatch(options.NewDefaultBatchOptions())
	if err != nil {
		log.Fatalf("failed to open batch: %v", err)
	}
	batch.Put([]byte("order:1"), []byte(`{"total":42}`))
	batch.Put([]byte("order:2"), []byte(`{"total":17}`))
	batch.Delete([]byte("user:1002"))
	if err := batch.Commit(); err != nil {
		log.Fatalf("failed to commit batch: %v", err)
	}
	fmt.Println("  committed 2 puts + 1 delete atomically")

	if _, err := db.Get(ctx, "user:1002"); err != nil {
		fmt.Println("  GET user:1002 -> not found, as expected")
	}

	fmt.Println("\n[stats]")
	stats, err := db.Stat(ctx)
	if err != nil {
		log.Fatalf("failed to stat database: %v", err)
	}
	fmt.Printf("  keys=%d files=%d reclaimable=%d total=%d\n",
		stats.KeyCount, stats.DataFileCount, stats.ReclaimableSize, stats.TotalDiskSize)

	fmt.Println("\n[merge]")
	if err := db.Merge(ctx); err != nil {
		fmt.Printf("  merge skipped: %v\n", err)
	} else {
		fmt.Println("  merge staged; reclaimed space lands on next open")
	}

	fmt.Println("\n[listing keys]")
	keys, err := db.ListKeys(ctx)
	if err != nil {
		log.Fatalf("failed to list keys: %v", err)
	}
	for _, key := range keys {
		fmt.Printf("  %s\n", key)
	}
}
