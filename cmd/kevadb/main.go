// Command kevadb is a small demo and timing harness for pkg/kevadb: it
// inserts a batch of keys into an on-disk store, looks them all back up,
// and reports how long each phase took.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"keva/pkg/kevadb"
)

func main() {
	path := flag.String("path", "data/kevadb.store", "path to the database file")
	n := flag.Int("n", 10000, "number of keys to insert and look up")
	flag.Parse()

	db, err := kevadb.OpenFile(*path, kevadb.Config{ValueSize: 8, KeysPerNode: 0})
	if err != nil {
		log.Fatalf("OpenFile: %v", err)
	}
	defer db.Close()

	fmt.Printf("inserting %d keys into %s\n", *n, *path)

	started := time.Now()
	for i := uint64(1); i <= uint64(*n); i++ {
		value := make([]byte, 8)
		for b := range value {
			value[b] = byte(i >> (8 * b))
		}
		if err := db.Put(i, value); err != nil {
			log.Fatalf("Put(%d): %v", i, err)
		}
	}
	fmt.Printf("insert took %s for %d keys\n", time.Since(started), *n)

	started = time.Now()
	var total uint64
	for i := uint64(1); i <= uint64(*n); i++ {
		value, err := db.Get(i)
		if err != nil {
			log.Fatalf("Get(%d): %v", i, err)
		}
		total += uint64(len(value))
	}
	fmt.Printf("lookup took %s for %d keys (%d bytes read)\n", time.Since(started), *n, total)
}
