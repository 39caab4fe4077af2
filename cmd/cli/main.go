package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/catalog"
	"github.com/alextreichler/detailacademy/internal/config"
	"github.com/alextreichler/detailacademy/internal/guest"
	"github.com/alextreichler/detailacademy/internal/models"
	"github.com/alextreichler/detailacademy/internal/store"
)

var (
	coursesCmd   = kingpin.Command("courses", "List the published catalog, grouped by series")
	coursesLevel = coursesCmd.Flag("level", "Only show one level (BEGINNER, INTERMEDIATE, ADVANCED)").Enum("BEGINNER", "INTERMEDIATE", "ADVANCED")

	purchaseCmd     = kingpin.Command("purchase", "Show a guest course purchase")
	purchaseID      = purchaseCmd.Arg("id", "Purchase id").Required().String()
	subscriptionCmd = kingpin.Command("subscription", "Show a guest subscription")
	subscriptionID  = subscriptionCmd.Arg("id", "Subscription id").Required().String()
	bookingCmd      = kingpin.Command("booking", "Show a guest mentorship booking")
	bookingID       = bookingCmd.Arg("id", "Booking id").Required().String()

	ledgerCmd       = kingpin.Command("ledger", "Local payment ledger maintenance")
	pruneCmd        = ledgerCmd.Command("prune", "Delete settled payment attempts")
	pruneOlderThan  = pruneCmd.Flag("older-than", "Only delete attempts untouched for this long").Default("720h").Duration()
	showAttemptCmd  = ledgerCmd.Command("show", "Show the payment attempt for one record")
	showAttemptKind = showAttemptCmd.Arg("kind", "course, subscription or booking").Required().Enum("course", "subscription", "booking")
	showAttemptID   = showAttemptCmd.Arg("id", "Record id").Required().String()

	envCmd = kingpin.Command("env", "Describe the environment variables the server reads")
)

func main() {
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version("0.1")
	kingpin.CommandLine.Help = "Detail Academy checkout - operator tools"
	cmd := kingpin.Parse()

	if cmd == envCmd.FullCommand() {
		fmt.Println(config.Usage())
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("Failed to load configuration", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := api.New(api.Options{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, api.NewStaticToken(cfg.API.Token), log)

	switch cmd {
	case coursesCmd.FullCommand():
		listCourses(ctx, catalog.NewService(client), models.Level(*coursesLevel))
	case purchaseCmd.FullCommand():
		p, err := guest.NewPurchaseService(client, guest.DefaultRetry).Get(ctx, *purchaseID)
		if err != nil {
			fatal("Failed to fetch purchase", err)
		}
		fmt.Printf("%s  %s  %s <%s>  %s  access=%s\n", p.ID, p.CourseTitle(), p.CustomerName, p.CustomerEmail, p.PaymentStatus, p.AccessCode)
	case subscriptionCmd.FullCommand():
		s, err := guest.NewSubscriptionService(client, guest.DefaultRetry).Get(ctx, *subscriptionID)
		if err != nil {
			fatal("Failed to fetch subscription", err)
		}
		fmt.Printf("%s  %s  %s <%s>  %s  %s\n", s.ID, s.SubscriptionType, s.CustomerName, s.CustomerEmail, s.PaymentStatus, s.Status)
	case bookingCmd.FullCommand():
		b, err := guest.NewBookingService(client, guest.DefaultRetry).Get(ctx, *bookingID)
		if err != nil {
			fatal("Failed to fetch booking", err)
		}
		fmt.Printf("%s  %s  %s %s  %s <%s>  %s\n", b.ID, b.MentorName(), b.PreferredDate, b.PreferredTime, b.CustomerName, b.CustomerEmail, b.PaymentStatus)
	case pruneCmd.FullCommand():
		db := openLedger(cfg.Ledger.Path)
		defer db.Close()
		n, err := db.Prune(ctx, *pruneOlderThan)
		if err != nil {
			fatal("Failed to prune ledger", err)
		}
		fmt.Printf("Removed %d payment attempts older than %s\n", n, *pruneOlderThan)
	case showAttemptCmd.FullCommand():
		db := openLedger(cfg.Ledger.Path)
		defer db.Close()
		a, err := db.GetAttempt(ctx, models.Kind(*showAttemptKind), *showAttemptID)
		if errors.Is(err, sql.ErrNoRows) {
			fmt.Println("No payment attempt recorded")
			return
		}
		if err != nil {
			fatal("Failed to read ledger", err)
		}
		fmt.Printf("%s %s  state=%s  key=%s  tx=%s  updated=%s\n", a.Kind, a.RecordID, a.State, a.Key, a.TransactionID, a.UpdatedAt.Format(time.RFC3339))
	}
}

func listCourses(ctx context.Context, svc *catalog.Service, level models.Level) {
	courses, err := svc.ListPublished(ctx)
	if err != nil {
		fatal("Failed to fetch courses", err)
	}
	shown := courses
	if level != "" {
		shown = catalog.FilterByLevel(courses, level)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tLEVEL\tPRICE\tSERIES")
	for _, card := range catalog.Listing(shown, courses) {
		badge := ""
		if card.Series {
			badge = "SERIES: " + card.SeriesName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t$%.2f\t%s\n", card.Course.ID, card.Course.Title, card.Course.Level, float64(card.Course.Price), badge)
	}
	w.Flush()
}

func openLedger(path string) *store.Store {
	db, err := store.NewStore(path)
	if err != nil {
		fatal("Failed to open ledger", err)
	}
	if err := db.Migrate(); err != nil {
		fatal("Failed to run migrations", err)
	}
	return db
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", msg, api.UserMessage(err, err.Error()))
	os.Exit(1)
}
