//go:build ignore
// +build ignore

// DNC Benchmark Tool
// Measures how quickly a target audience can be checked against a large
// do-not-contact list using the in-memory snapshot matcher.
//
// Usage:
//   go run scripts/dnc_benchmark.go \
//     --list-size=10000000 \
//     --audience-size=5000000 \
//     --workers=16
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/crm-suppression/internal/dncindex"
	"github.com/ignite/crm-suppression/internal/domain"
	"github.com/ignite/crm-suppression/internal/normalize"
	"github.com/ignite/crm-suppression/internal/service/dnc"
)

type benchmarkConfig struct {
	ListSize     int
	AudienceSize int
	Workers      int
	BatchSize    int

	// What fraction of the audience should be on the list.
	OverlapPercentage float64
}

func main() {
	cfg := benchmarkConfig{}
	flag.IntVar(&cfg.ListSize, "list-size", 10_000_000, "number of do-not-contact entries")
	flag.IntVar(&cfg.AudienceSize, "audience-size", 5_000_000, "number of contacts to check")
	flag.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "concurrent check workers")
	flag.IntVar(&cfg.BatchSize, "batch-size", 10_000, "contacts per bulk check")
	flag.Float64Var(&cfg.OverlapPercentage, "overlap", 0.15, "fraction of audience on the list")
	flag.Parse()

	fmt.Println("=========================================================")
	fmt.Println(" Do-Not-Contact Check Benchmark")
	fmt.Println("=========================================================")
	fmt.Printf("List size:       %d\n", cfg.ListSize)
	fmt.Printf("Audience size:   %d\n", cfg.AudienceSize)
	fmt.Printf("Workers:         %d\n", cfg.Workers)
	fmt.Printf("Batch size:      %d\n", cfg.BatchSize)
	fmt.Printf("Overlap:         %.1f%%\n", cfg.OverlapPercentage*100)
	fmt.Println("---------------------------------------------------------")

	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	// Build a synthetic list. Mostly email entries, with a slice of
	// external-ID and compound entries so all four rules get exercised.
	fmt.Print("Generating list entries... ")
	start := time.Now()
	entries := make([]domain.SuppressionEntry, 0, cfg.ListSize)
	for i := 0; i < cfg.ListSize; i++ {
		e := domain.SuppressionEntry{ID: fmt.Sprintf("bench-%d", i)}
		switch i % 10 {
		case 7:
			e.ExternalIDA = fmt.Sprintf("CRM-%d", i)
		case 8:
			e.ExternalIDB = fmt.Sprintf("ERP-%d", i)
		case 9:
			e.CompoundHash = normalize.CompoundHash(
				fmt.Sprintf("person %d", i), "benchmark corp")
		default:
			e.NormalizedEmail = fmt.Sprintf("user%d@example.com", i)
		}
		entries = append(entries, e)
	}
	fmt.Printf("done (%s)\n", time.Since(start).Round(time.Millisecond))

	fmt.Print("Building snapshot index... ")
	start = time.Now()
	idx := dncindex.New()
	if err := idx.Rebuild(ctx, entries); err != nil {
		log.Fatalf("rebuild: %v", err)
	}
	fmt.Printf("done (%s)\n", time.Since(start).Round(time.Millisecond))
	entries = nil

	svc := dnc.NewService(nil)
	svc.UseMatcher(idx)

	// Audience: overlap% draw their identity from the list, the rest are
	// fresh contacts.
	makeContact := func(i int) domain.Contact {
		c := domain.Contact{ID: fmt.Sprintf("aud-%d", i)}
		if rng.Float64() < cfg.OverlapPercentage {
			j := rng.Intn(cfg.ListSize)
			switch j % 10 {
			case 7:
				c.ExternalIDA = fmt.Sprintf("CRM-%d", j)
			case 8:
				c.ExternalIDB = fmt.Sprintf("ERP-%d", j)
			case 9:
				c.FirstName = "Person"
				c.LastName = fmt.Sprintf("%d", j)
				c.CompanyName = "Benchmark Corp"
			default:
				c.Email = fmt.Sprintf("user%d@example.com", j)
			}
		} else {
			c.Email = fmt.Sprintf("fresh%d@elsewhere.com", i)
		}
		normalize.Apply(&c)
		return c
	}

	fmt.Printf("Checking %d contacts with %d workers...\n", cfg.AudienceSize, cfg.Workers)
	var (
		checked int64
		matched int64
		wg      sync.WaitGroup
	)
	batches := make(chan []domain.Contact, cfg.Workers*2)

	start = time.Now()
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				verdicts, err := svc.EvaluateBulk(ctx, batch)
				if err != nil {
					log.Fatalf("bulk check: %v", err)
				}
				atomic.AddInt64(&checked, int64(len(batch)))
				atomic.AddInt64(&matched, int64(len(verdicts)))
			}
		}()
	}

	batch := make([]domain.Contact, 0, cfg.BatchSize)
	for i := 0; i < cfg.AudienceSize; i++ {
		batch = append(batch, makeContact(i))
		if len(batch) == cfg.BatchSize {
			batches <- batch
			batch = make([]domain.Contact, 0, cfg.BatchSize)
		}
	}
	if len(batch) > 0 {
		batches <- batch
	}
	close(batches)
	wg.Wait()
	elapsed := time.Since(start)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fmt.Println("---------------------------------------------------------")
	fmt.Println(" RESULTS")
	fmt.Println("---------------------------------------------------------")
	fmt.Printf("Checked:         %d contacts\n", checked)
	fmt.Printf("Matched:         %d (%.2f%%)\n", matched, float64(matched)/float64(checked)*100)
	fmt.Printf("Elapsed:         %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Throughput:      %.0f checks/sec\n", float64(checked)/elapsed.Seconds())
	fmt.Printf("Heap in use:     %.1f MB\n", float64(mem.HeapInuse)/1024/1024)
	fmt.Println("=========================================================")
}
