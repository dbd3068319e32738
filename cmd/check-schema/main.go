package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("DATABASE_DSN"), "postgres connection string")
	flag.Parse()

	if *dsn == "" {
		log.Fatalf("No DSN given (use -dsn or DATABASE_DSN)")
	}

	fmt.Println("🔍 Checking leveler schema state...")

	sqlDB, err := sql.Open("postgres", *dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	var (
		owner, authorized, baseCost, bridgeAgent string
		version, maxLevel                        uint64
		capped                                   bool
	)
	err = sqlDB.QueryRow(`
		SELECT owner, authorized, base_cost, version, capped, max_level, bridge_agent
		FROM level_policies
		ORDER BY id
		LIMIT 1
	`).Scan(&owner, &authorized, &baseCost, &version, &capped, &maxLevel, &bridgeAgent)
	if err == sql.ErrNoRows {
		fmt.Println("❌ Level state is not initialized")
		return
	}
	if err != nil {
		log.Fatalf("Failed to query level policy: %v", err)
	}

	fmt.Printf("📋 Schema version: %d\n", version)
	fmt.Printf("   Owner: %s\n", owner)
	fmt.Printf("   Authorized: %s\n", authorized)
	fmt.Printf("   Base cost: %s\n", baseCost)
	if capped {
		fmt.Printf("   Max level: %d\n", maxLevel)
	} else {
		fmt.Println("   Max level: unbounded")
	}
	if version >= 4 {
		fmt.Printf("   Bridge agent: %s\n", bridgeAgent)
	}

	rows, err := sqlDB.Query(`SELECT version, name, initialized_by, initialized_at FROM version_gates ORDER BY version`)
	if err != nil {
		log.Fatalf("Failed to query version gates: %v", err)
	}
	defer rows.Close()

	fmt.Println("\n📋 Version gates:")
	for rows.Next() {
		var (
			v        uint64
			name, by string
			at       time.Time
		)
		if err := rows.Scan(&v, &name, &by, &at); err != nil {
			log.Fatalf("Failed to scan version gate: %v", err)
		}
		fmt.Printf("   ✅ %d %-10s by %s at %s\n", v, name, by, at.Format(time.RFC3339))
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Failed to read version gates: %v", err)
	}

	var highest sql.NullInt64
	if err := sqlDB.QueryRow(`SELECT MAX(level) FROM level_records`).Scan(&highest); err != nil {
		log.Fatalf("Failed to query levels: %v", err)
	}
	if highest.Valid {
		fmt.Printf("\n📋 Highest level: %d\n", highest.Int64)
		if capped && uint64(highest.Int64) > maxLevel {
			fmt.Println("❌ Highest level exceeds the configured cap!")
		}
	}
}
