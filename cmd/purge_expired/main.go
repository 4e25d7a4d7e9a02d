// Purges receipts whose claim window closed more than the retention period
// ago, along with their line items and claims. Intended to run from cron.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	retentionDays := flag.Int("retention-days", 30, "keep expired receipts this many days past expiry")
	dryRun := flag.Bool("dry-run", false, "report what would be deleted without deleting")
	flag.Parse()

	dsn := os.Getenv("BS_DB_DSN")
	if dsn == "" {
		log.Fatal("BS_DB_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	cutoff := fmt.Sprintf("now() - interval '%d days'", *retentionDays)

	if *dryRun {
		var n int64
		if err := db.QueryRow(`SELECT count(*) FROM receipts WHERE expires_at < ` + cutoff).Scan(&n); err != nil {
			log.Fatalf("count receipts: %v", err)
		}
		fmt.Printf("dry run: %d receipts past retention\n", n)
		return
	}

	// Children first: claims hang off line items, line items off receipts.
	res1, err := db.Exec(`DELETE FROM claims WHERE line_item_id IN (
		SELECT li.id FROM line_items li JOIN receipts r ON li.receipt_id = r.id
		WHERE r.expires_at < ` + cutoff + `)`)
	if err != nil {
		log.Fatalf("delete claims: %v", err)
	}
	n1, _ := res1.RowsAffected()

	res2, err := db.Exec(`DELETE FROM line_items WHERE receipt_id IN (
		SELECT id FROM receipts WHERE expires_at < ` + cutoff + `)`)
	if err != nil {
		log.Fatalf("delete line items: %v", err)
	}
	n2, _ := res2.RowsAffected()

	res3, err := db.Exec(`DELETE FROM receipts WHERE expires_at < ` + cutoff)
	if err != nil {
		log.Fatalf("delete receipts: %v", err)
	}
	n3, _ := res3.RowsAffected()

	fmt.Printf("purge done: claims=%d line_items=%d receipts=%d\n", n1, n2, n3)
}
