package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"courtside/cmd"
	"courtside/config"
	"courtside/database"
	"courtside/domain/entities"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const usage = `usage: courtside [command]

commands:
  (none)                                          run the coordinator
  migrate up|down [steps]|status                  manage the schema
  add-user <id> <name> <role> [secret] [balance]  create a user
  adjust-balance <id> <amount> <note...>          signed admin correction
  reconcile [id]                                  report balance drift
  close-session [session-id]                      close and archive a session`

func main() {
	// A missing .env is fine; the environment may already be set
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to load .env")
	}
	config.Get().ConfigureLogging()

	if len(os.Args) > 1 {
		if err := runCommand(os.Args[1], os.Args[2:]); err != nil {
			log.WithField("command", os.Args[1]).Fatal(err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func runCommand(name string, args []string) error {
	switch name {
	case "migrate":
		return handleMigrationCommand(args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return nil
	case "add-user", "adjust-balance", "reconcile", "close-session":
		return handleAdminCommand(name, args)
	default:
		return fmt.Errorf("unknown command %q\n%s", name, usage)
	}
}

func handleMigrationCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: courtside migrate [up|down|status] [args...]")
	}

	switch args[0] {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", args[0])
	}
}

func handleAdminCommand(name string, args []string) error {
	ctx := context.Background()
	app, err := cmd.Bootstrap(ctx, config.Get(), cmd.Options{})
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	switch name {
	case "add-user":
		if len(args) < 3 {
			return fmt.Errorf("usage: courtside add-user <id> <name> <role> [secret] [balance]")
		}
		var secret string
		var balance int64
		if len(args) > 3 {
			secret = args[3]
		}
		if len(args) > 4 {
			if balance, err = strconv.ParseInt(args[4], 10, 64); err != nil {
				return fmt.Errorf("invalid balance %q: %w", args[4], err)
			}
		}
		user, err := app.AddUser(ctx, args[0], args[1], entities.Role(args[2]), secret, balance)
		if err != nil {
			return err
		}
		fmt.Printf("created %s (%s) balance %d\n", user.ID, user.Role, user.Balance)

	case "adjust-balance":
		if len(args) < 3 {
			return fmt.Errorf("usage: courtside adjust-balance <id> <amount> <note...>")
		}
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}
		tx, err := app.AdjustBalance(ctx, args[0], amount, strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d -> %d (tx %s)\n", tx.UserID, tx.BalanceBefore, tx.BalanceAfter, tx.ID)

	case "reconcile":
		var userID string
		if len(args) > 0 {
			userID = args[0]
		}
		reports, err := app.Reconcile(ctx, userID)
		if err != nil {
			return err
		}
		drifted := 0
		for _, r := range reports {
			fmt.Printf("%-24s cached %10d ledger %10d drift %d\n", r.UserID, r.CachedBalance, r.LedgerSum, r.Drift())
			if r.Drift() != 0 {
				drifted++
			}
		}
		if drifted > 0 {
			return fmt.Errorf("%d of %d wallets drifted", drifted, len(reports))
		}

	case "close-session":
		var sessionID string
		if len(args) > 0 {
			sessionID = args[0]
		}
		archive, err := app.CloseSession(ctx, sessionID)
		if err != nil {
			return err
		}
		fmt.Printf("archived %s as %s: %d active, income %d, expense %d, net %d\n",
			archive.SessionID, archive.Key, archive.ActiveCount, archive.Income, archive.Expense, archive.Net)
	}
	return nil
}
