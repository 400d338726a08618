package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const docPrefix = "doc:"

func main() {
	dbPath := os.Getenv("DOCUMENTS_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Ecotrack/data/documents")
	}

	var only string
	if len(os.Args) > 1 {
		only = os.Args[1]
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Document Store Inspection ===")
	fmt.Println()

	counts := make(map[string]int)
	shown := 0

	prefix := []byte(docPrefix)
	if only != "" {
		prefix = []byte(docPrefix + only + ":")
	}

	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			collection, key, ok := strings.Cut(strings.TrimPrefix(string(item.Key()), docPrefix), ":")
			if !ok {
				continue
			}
			counts[collection]++

			// Dump documents only for a single requested collection
			if only == "" || shown >= 10 {
				continue
			}
			shown++

			err := item.Value(func(val []byte) error {
				var doc map[string]any
				if err := json.Unmarshal(val, &doc); err != nil {
					return err
				}
				pretty, err := json.MarshalIndent(doc, "  ", "  ")
				if err != nil {
					return err
				}
				fmt.Printf("Document: %s\n  %s\n\n", key, pretty)
				return nil
			})
			if err != nil {
				log.Printf("Error reading document %s/%s: %v", collection, key, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating document store: %v", err)
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("=== Summary ===")
	total := 0
	for _, name := range names {
		fmt.Printf("%-40s %d\n", name, counts[name])
		total += counts[name]
	}
	fmt.Printf("Collections: %d\n", len(names))
	fmt.Printf("Total documents: %d\n", total)
	if only != "" && counts[only] > shown {
		fmt.Printf("(showed %d of %d documents in %s)\n", shown, counts[only], only)
	}
}
