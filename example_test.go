package fuzzygo_test

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/fuzzygo"
	"github.com/hupe1980/fuzzygo/distance"
	"github.com/hupe1980/fuzzygo/kv"
)

// Example demonstrates basic insert and fuzzy lookup.
func Example() {
	ctx := context.Background()

	db, err := fuzzygo.InMemory[string]().
		MaxDeletes(2).
		Build(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Insert(ctx, "alfred pennyworth", "butler"); err != nil {
		log.Fatal(err)
	}

	matches, err := db.FuzzyLookup(ctx, "alfred penyworth", 1, distance.Levenshtein)
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range matches {
		fmt.Printf("%s (%s) at distance %d\n", m.Key, m.Value, m.Distance)
	}
	// Output:
	// alfred pennyworth (butler) at distance 1
}

// Example_lookupBuilder demonstrates the fluent lookup API.
func Example_lookupBuilder() {
	ctx := context.Background()

	db := fuzzygo.InMemory[int]().MaxDeletes(2).MustBuild(ctx)
	defer db.Close()

	for i, key := range []string{"cat", "cats", "cart"} {
		if _, err := db.Insert(ctx, key, i); err != nil {
			log.Fatal(err)
		}
	}

	matches := db.Lookup("cat").
		Within(1).
		SortByDistance().
		MustExecute(ctx)

	for _, m := range matches {
		fmt.Printf("%s at distance %d\n", m.Key, m.Distance)
	}
	// Output:
	// cat at distance 0
	// cats at distance 1
	// cart at distance 1
}

// Example_snapshot demonstrates saving a snapshot and restoring it into a
// fresh store.
func Example_snapshot() {
	ctx := context.Background()

	db := fuzzygo.InMemory[string]().MaxDeletes(1).MustBuild(ctx)
	defer db.Close()

	if _, err := db.Insert(ctx, "gopher", "mascot"); err != nil {
		log.Fatal(err)
	}

	var buf bytes.Buffer
	if err := db.SaveSnapshot(ctx, &buf); err != nil {
		log.Fatal(err)
	}

	restored, err := fuzzygo.Restore[string](ctx, &buf, kv.NewMemory())
	if err != nil {
		log.Fatal(err)
	}

	n, err := restored.Count(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("restored %d record(s), radius %d\n", n, restored.MaxDeletes())
	// Output:
	// restored 1 record(s), radius 1
}
