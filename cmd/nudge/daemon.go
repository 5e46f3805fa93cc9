package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nudgeapp/nudge/internal/bus"
	"github.com/nudgeapp/nudge/internal/config"
	"github.com/nudgeapp/nudge/internal/control"
	"github.com/nudgeapp/nudge/internal/journal"
	"github.com/nudgeapp/nudge/internal/kv"
	"github.com/nudgeapp/nudge/internal/models"
	"github.com/nudgeapp/nudge/internal/notify"
	"github.com/nudgeapp/nudge/internal/recurrence"
	"github.com/nudgeapp/nudge/internal/reminder"
	"github.com/nudgeapp/nudge/internal/taskstore"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
	configPath string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the nudge daemon (nudged)",
	Long:  `Starts the nudge daemon which owns the task store, schedules reminder notifications and provides the HTTP API.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	daemonCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default ~/.nudge/config.yaml)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting nudge daemon...")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromHome()
	}
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	store, err := kv.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}

	b := bus.New()
	jrnl := journal.New(store)
	jrnl.Attach(b)

	notifier := buildNotifier(cfg)
	log.Printf("Using %s notifier", notifier.Name())

	sched := notify.NewScheduler(notifier, store)
	sched.RegisterCategories()
	if !sched.RequestPermission(cmd.Context()) {
		log.Println("Warning: notification delivery unavailable, reminders will be dropped")
	}

	coord := reminder.New(sched)
	coord.AllowPastTriggers = cfg.AllowPastTriggers

	tasks := taskstore.New(store, coord, b)
	if cfg.SnoozeHours != taskstore.DefaultSnoozeHours {
		tasks.SetSnoozeDuration(context.Background(), cfg.SnoozeHours)
	}

	service := control.NewService(tasks, sched, jrnl)
	server := control.NewServer(service, store, cfg.ListenAddr)

	// Route notification actions back into the task store.
	sched.OnResponse(func(action, taskID string) {
		ctx := context.Background()
		switch action {
		case models.ActionComplete:
			if _, err := service.CompleteTask(ctx, taskID); err != nil {
				log.Printf("Complete from notification: %v", err)
			}
		case models.ActionSnooze:
			if _, err := service.SnoozeTask(ctx, taskID, 0); err != nil {
				log.Printf("Snooze from notification: %v", err)
			}
		default:
			log.Printf("Unhandled notification action %q for task %s", action, taskID)
		}
	})

	reconcile(context.Background(), cfg, tasks, coord)

	sched.Start()
	defer sched.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			store.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing database connection...")
	if err := store.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

// buildNotifier selects the notification backend, falling back to the
// log notifier when the desktop one is unavailable.
func buildNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Notifier == "desktop" {
		d := notify.NewDesktop(cfg.NotifierBin)
		if d.Available() {
			return d
		}
		log.Println("Desktop notifier unavailable, falling back to log")
	}
	return notify.LogNotifier{}
}

// reconcile re-schedules reminders for every incomplete task at startup.
// Scheduled notifications do not survive a daemon restart, so the stored
// collection is the source of truth. Optionally fires an immediate alert
// for tasks that went overdue while the daemon was down.
func reconcile(ctx context.Context, cfg *config.Config, tasks *taskstore.Store, coord *reminder.Coordinator) {
	now := time.Now()
	synced, overdue := 0, 0
	for _, t := range tasks.List(ctx) {
		if t.Completed {
			continue
		}
		if t.HasReminder() {
			if err := coord.Sync(ctx, t); err != nil {
				log.Printf("Reconcile reminders for task %s: %v", t.ID, err)
				continue
			}
			synced++
		}
		if cfg.OverdueAlerts && isOverdue(t.DueDate, now) {
			if err := coord.NotifyOverdue(ctx, t); err != nil {
				log.Printf("Overdue alert for task %s: %v", t.ID, err)
				continue
			}
			overdue++
		}
	}
	log.Printf("Reconciled reminders: %d synced, %d overdue alerts", synced, overdue)
}

func isOverdue(dueDate string, now time.Time) bool {
	if dueDate == "" {
		return false
	}
	due, err := time.ParseInLocation(recurrence.DateLayout, dueDate, time.Local)
	if err != nil {
		return false
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	return due.Before(midnight)
}
