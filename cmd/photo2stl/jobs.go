package main

import (
	"context"
	"fmt"
	"os"
	"time"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/jobstore"
)

// openLedger opens the daemon's job ledger read-style. The ledger lives
// wherever daemon.history_db points; without a daemon having run there is
// nothing to show.
func openLedger() (*jobstore.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Daemon.HistoryDB); os.IsNotExist(err) {
		return nil, perrors.DaemonError("no job ledger found").
			WithContext("path", cfg.Daemon.HistoryDB)
	}
	return jobstore.NewSQLiteStore(cfg.Daemon.HistoryDB)
}

func runJobsList() error {
	store, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	jobs, err := store.ListJobs(context.Background(), CLI.Jobs.List.Limit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs recorded.")
		return nil
	}

	fmt.Printf("%-36s  %-10s  %-19s  %s\n", "ID", "STATUS", "CREATED", "SOURCE")
	for _, j := range jobs {
		fmt.Printf("%-36s  %-10s  %-19s  %s\n",
			j.ID, j.Status, j.CreatedAt.Format("2006-01-02 15:04:05"), j.Source)
	}
	return nil
}

func runJobsShow() error {
	store, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	job, err := store.GetJob(ctx, CLI.Jobs.Show.ID)
	if err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", job.ID)
	fmt.Printf("Source:   %s\n", job.Source)
	fmt.Printf("Status:   %s\n", job.Status)
	fmt.Printf("Created:  %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("Started:  %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.FinishedAt != nil {
		fmt.Printf("Finished: %s (%s)\n", job.FinishedAt.Format(time.RFC3339), job.Duration.Round(timeRounding))
	}
	if job.STLPath != "" {
		fmt.Printf("STL:      %s (%d triangles, watertight=%v)\n",
			job.STLPath, job.Triangles, job.Watertight)
	}
	if job.Error != "" {
		fmt.Printf("Error:    %s\n", job.Error)
	}

	events, err := store.GetEvents(ctx, job.ID)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		fmt.Println("\nHistory:")
		for _, e := range events {
			line := fmt.Sprintf("  %s  %s", e.Timestamp.Format("15:04:05"), e.EventType)
			if e.Detail != "" {
				line += "  " + e.Detail
			}
			fmt.Println(line)
		}
	}
	return nil
}
