// Command verify-dnc checks the health of the do-not-contact table after a
// migration or bulk import: schema, indexes, and matchability invariants.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const tableName = "crm_dnc_entries"

type checkResult struct {
	Name    string
	Passed  bool
	Detail  string
	Elapsed time.Duration
}

func main() {
	host := envOrDefault("DB_HOST", "localhost")
	port := envOrDefault("DB_PORT", "5432")
	user := envOrDefault("DB_USER", "crm")
	pass := envOrDefault("DB_PASSWORD", "crm_secret")
	dbname := envOrDefault("DB_NAME", "crm")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, dbname)

	fmt.Println("=========================================================")
	fmt.Println(" Do-Not-Contact Table Verification")
	fmt.Println("=========================================================")
	fmt.Printf("Target table:       %s\n", tableName)
	fmt.Println("---------------------------------------------------------")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(3)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot connect to database: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Database connection established")
	fmt.Println()

	var results []checkResult

	// Check 1: Table exists
	results = append(results, checkTableExists(ctx, db))

	// Check 2: Row count
	results = append(results, checkRowCount(ctx, db))

	// Check 3: Per-field value counts
	results = append(results, checkFieldCounts(ctx, db))

	// Check 4: No unmatchable rows (all four matchable columns empty)
	results = append(results, checkNoUnmatchableRows(ctx, db))

	// Check 5: No duplicate value tuples
	results = append(results, checkNoDuplicateTuples(ctx, db))

	// Checks 6-9: Index on each matchable column
	for _, col := range []string{"normalized_email", "external_id_a", "external_id_b", "compound_hash"} {
		results = append(results, checkIndexExists(ctx, db, col))
	}

	// Check 10: Email values are normalized (no uppercase, no edge whitespace)
	results = append(results, checkEmailsNormalized(ctx, db))

	// Print report
	fmt.Println()
	fmt.Println("=========================================================")
	fmt.Println(" VERIFICATION REPORT")
	fmt.Println("=========================================================")

	allPassed := true
	for i, r := range results {
		status := "PASS ✓"
		if !r.Passed {
			status = "FAIL ✗"
			allPassed = false
		}
		fmt.Printf("  [%d] %-45s %s  (%s)\n", i+1, r.Name, status, r.Elapsed.Round(time.Millisecond))
		if r.Detail != "" {
			for _, line := range strings.Split(r.Detail, "\n") {
				fmt.Printf("      %s\n", line)
			}
		}
	}

	fmt.Println("=========================================================")
	if allPassed {
		fmt.Println("  OVERALL: PASS ✓  — All verifications succeeded")
		fmt.Println("=========================================================")
		os.Exit(0)
	} else {
		fmt.Println("  OVERALL: FAIL ✗  — One or more verifications failed")
		fmt.Println("=========================================================")
		os.Exit(1)
	}
}

func checkTableExists(ctx context.Context, db *sql.DB) checkResult {
	start := time.Now()
	name := "Table exists"

	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_tables WHERE schemaname = 'public' AND tablename = $1)`, tableName,
	).Scan(&exists)
	if err != nil {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("Query error: %v", err), Elapsed: time.Since(start)}
	}
	if !exists {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("Table %s not found — run cmd/migrate first", tableName), Elapsed: time.Since(start)}
	}
	return checkResult{Name: name, Passed: true, Elapsed: time.Since(start)}
}

func checkRowCount(ctx context.Context, db *sql.DB) checkResult {
	start := time.Now()
	name := "Row count"

	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crm_dnc_entries`).Scan(&count)
	if err != nil {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("Query error: %v", err), Elapsed: time.Since(start)}
	}
	return checkResult{Name: name, Passed: true, Detail: fmt.Sprintf("rows=%d", count), Elapsed: time.Since(start)}
}

func checkFieldCounts(ctx context.Context, db *sql.DB) checkResult {
	start := time.Now()
	name := "Per-field value counts"

	var emails, extA, extB, hashes int64
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE normalized_email <> ''),
			COUNT(*) FILTER (WHERE external_id_a <> ''),
			COUNT(*) FILTER (WHERE external_id_b <> ''),
			COUNT(*) FILTER (WHERE compound_hash <> '')
		FROM crm_dnc_entries`,
	).Scan(&emails, &extA, &extB, &hashes)
	if err != nil {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("Query error: %v", err), Elapsed: time.Since(start)}
	}
	detail := fmt.Sprintf("emails=%d, external_id_a=%d, external_id_b=%d, compound_hashes=%d", emails, extA, extB, hashes)
	return checkResult{Name: name, Passed: true, Detail: detail, Elapsed: time.Since(start)}
}

func checkNoUnmatchableRows(ctx context.Context, db *sql.DB) checkResult {
	start := time.Now()
	name := "No unmatchable rows"

	var count int64
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM crm_dnc_entries
		WHERE normalized_email = '' AND external_id_a = '' AND external_id_b = '' AND compound_hash = ''`,
	).Scan(&count)
	if err != nil {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("Query error: %v", err), Elapsed: time.Since(start)}
	}
	if count > 0 {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("%d rows carry no matchable value — they can never suppress anything", count), Elapsed: time.Since(start)}
	}
	return checkResult{Name: name, Passed: true, Elapsed: time.Since(start)}
}

func checkNoDuplicateTuples(ctx context.Context, db *sql.DB) checkResult {
	start := time.Now()
	name := "No duplicate value tuples"

	var count int64
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM crm_dnc_entries
			GROUP BY normalized_email, external_id_a, external_id_b, compound_hash
			HAVING COUNT(*) > 1
		) dups`,
	).Scan(&count)
	if err != nil {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("Query error: %v", err), Elapsed: time.Since(start)}
	}
	if count > 0 {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("%d value tuples appear more than once", count), Elapsed: time.Since(start)}
	}
	return checkResult{Name: name, Passed: true, Elapsed: time.Since(start)}
}

func checkIndexExists(ctx context.Context, db *sql.DB, columnName string) checkResult {
	start := time.Now()
	name := fmt.Sprintf("Index exists on %s column", columnName)

	query := `
		SELECT indexname, indexdef
		FROM pg_indexes
		WHERE tablename = $1
		  AND indexdef ILIKE '%' || $2 || '%'
		ORDER BY indexname
	`

	rows, err := db.QueryContext(ctx, query, tableName, columnName)
	if err != nil {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("Query error: %v", err), Elapsed: time.Since(start)}
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var idxName, idxDef string
		if err := rows.Scan(&idxName, &idxDef); err != nil {
			return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("Scan error: %v", err), Elapsed: time.Since(start)}
		}
		indexes = append(indexes, fmt.Sprintf("%s: %s", idxName, idxDef))
	}
	if err := rows.Err(); err != nil {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("Rows error: %v", err), Elapsed: time.Since(start)}
	}

	if len(indexes) == 0 {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("No index found covering column %s", columnName), Elapsed: time.Since(start)}
	}

	detail := fmt.Sprintf("Found %d index(es):\n%s", len(indexes), strings.Join(indexes, "\n"))
	return checkResult{Name: name, Passed: true, Detail: detail, Elapsed: time.Since(start)}
}

func checkEmailsNormalized(ctx context.Context, db *sql.DB) checkResult {
	start := time.Now()
	name := "Email values are normalized"

	var count int64
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM crm_dnc_entries
		WHERE normalized_email <> ''
		  AND (normalized_email <> LOWER(normalized_email) OR normalized_email <> TRIM(normalized_email))`,
	).Scan(&count)
	if err != nil {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("Query error: %v", err), Elapsed: time.Since(start)}
	}
	if count > 0 {
		return checkResult{Name: name, Passed: false, Detail: fmt.Sprintf("%d email values are not lowercase/trimmed — matching will silently miss them", count), Elapsed: time.Since(start)}
	}
	return checkResult{Name: name, Passed: true, Elapsed: time.Since(start)}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
