package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/decker/internal/config"
	"github.com/conorfennell/decker/internal/domain"
	"github.com/conorfennell/decker/internal/importer"
	"github.com/conorfennell/decker/internal/sm2"
	"github.com/conorfennell/decker/internal/storage"
	"github.com/conorfennell/decker/internal/study"
	syncpkg "github.com/conorfennell/decker/internal/sync"
)

func main() {
	// 1. Define and parse command-line flags
	configPath := pflag.String("config", "", "Path to an optional YAML config file")
	pflag.String("db", "decker.db", "Path to the SQLite database file")
	pflag.String("repos", "repos", "Directory git sources are cloned into")
	pflag.String("user", "local", "User the operation runs as")

	importFile := pflag.String("import", "", "Import the given .apkg file")
	deckName := pflag.String("name", "", "Override the deck name on import")
	deleteDeck := pflag.Int64("delete-deck", 0, "Delete the deck with the given id and everything in it")
	listDecks := pflag.Bool("list-decks", false, "List all decks")
	due := pflag.Bool("due", false, "List cards due for review")
	reviewCard := pflag.Int64("review", 0, "Review the card with the given id (requires --quality)")
	reviewConcept := pflag.String("review-concept", "", "Review the grammar concept with the given id (requires --quality)")
	quality := pflag.String("quality", "", "Review rating: again, good or easy")
	addSource := pflag.String("add-source", "", "Register a local directory or git URL as an archive source")
	runSync := pflag.Bool("sync", false, "Reconcile all registered sources")
	pflag.Parse()

	cfg, err := config.Load(*configPath, pflag.CommandLine)
	if err != nil {
		fatal("Failed to load config", err)
	}

	// 2. Open the database
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		fatal("Failed to open database", err)
	}
	defer db.Close()

	logger := slog.Default()
	params := cfg.Params()
	imp := importer.New(db, params, logger)
	svc := study.New(db, params, logger)
	ctx := context.Background()

	switch {
	case *importFile != "":
		runImport(ctx, imp, cfg.UserID, *importFile, *deckName)
	case *deleteDeck != 0:
		if err := imp.DeleteDeck(ctx, cfg.UserID, *deleteDeck); err != nil {
			fatal("Failed to delete deck", err)
		}
		fmt.Printf("Deleted deck %d.\n", *deleteDeck)
	case *listDecks:
		runListDecks(ctx, db, cfg.UserID)
	case *due:
		runDue(ctx, svc, cfg.UserID)
	case *reviewCard != 0:
		runReviewCard(ctx, svc, cfg.UserID, *reviewCard, *quality)
	case *reviewConcept != "":
		runReviewConcept(ctx, svc, cfg.UserID, *reviewConcept, *quality)
	case *addSource != "":
		runAddSource(ctx, db, cfg.UserID, *addSource)
	case *runSync:
		if err := syncpkg.Run(ctx, db, imp, cfg.UserID, cfg.ReposDir); err != nil {
			fatal("Sync failed", err)
		}
	default:
		pflag.Usage()
		os.Exit(2)
	}
}

func runImport(ctx context.Context, imp *importer.Importer, userID, path, name string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fatal("Failed to read archive", err)
	}

	res, err := imp.Import(ctx, userID, data, name)
	if err != nil {
		fatal("Import failed", err)
	}
	fmt.Printf("Imported %q (deck %d): %d notes, %d cards, %d media files.\n",
		res.DeckName, res.DeckID, res.NoteCount, res.CardCount, res.MediaCount)
}

func runListDecks(ctx context.Context, db *storage.DB, userID string) {
	decks, err := db.ListDecks(ctx, userID)
	if err != nil {
		fatal("Failed to list decks", err)
	}
	if len(decks) == 0 {
		fmt.Println("No decks imported yet.")
		return
	}

	rows := make([][]string, 0, len(decks))
	for _, d := range decks {
		rows = append(rows, []string{
			strconv.FormatInt(d.ID, 10),
			d.Name,
			strconv.Itoa(d.TotalCards),
			strconv.Itoa(d.NewCards),
			strconv.Itoa(d.LearningCards),
			strconv.Itoa(d.ReviewCards),
			d.CreatedAt.Local().Format("2006-01-02"),
		})
	}
	fmt.Println(renderTable(
		[]string{"ID", "Name", "Cards", "New", "Learning", "Review", "Imported"},
		rows, 0, 2, 3, 4, 5))
}

func runDue(ctx context.Context, svc *study.Service, userID string) {
	cards, err := svc.DueCards(ctx, userID, 0)
	if err != nil {
		fatal("Failed to list due cards", err)
	}
	if len(cards) == 0 {
		fmt.Println("Nothing due. Well done.")
		return
	}

	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		dueAt := "new"
		if c.State.Due != nil {
			dueAt = c.State.Due.Local().Format(time.RFC822)
		}
		rows = append(rows, []string{
			strconv.FormatInt(c.Card.ID, 10),
			truncate(c.Card.Front, 60),
			string(c.State.Phase),
			dueAt,
		})
	}
	fmt.Println(renderTable([]string{"Card", "Front", "Phase", "Due"}, rows, 0))
}

func runReviewCard(ctx context.Context, svc *study.Service, userID string, cardID int64, quality string) {
	q := parseQuality(quality)
	res, err := svc.ReviewCard(ctx, userID, cardID, q)
	if err != nil {
		fatal("Review failed", err)
	}

	fmt.Printf("Card %d: phase=%s interval=%.1fd ease=%.2f\n",
		cardID, res.State.Phase, res.State.IntervalDays, res.State.Ease)
	if res.InSession {
		fmt.Println("Show this card again before ending the session.")
	} else if res.State.Due != nil {
		fmt.Printf("Next review %s.\n", res.State.Due.Local().Format(time.RFC822))
	}
}

func runReviewConcept(ctx context.Context, svc *study.Service, userID, conceptID, quality string) {
	q := parseQuality(quality)
	res, err := svc.ReviewConcept(ctx, userID, conceptID, q)
	if err != nil {
		fatal("Review failed", err)
	}

	fmt.Printf("Concept %s: %s (phase=%s interval=%.1fd)\n",
		conceptID, res.Label, res.State.Phase, res.State.IntervalDays)
}

func runAddSource(ctx context.Context, db *storage.DB, userID, path string) {
	existing, err := db.FindSourceByPath(ctx, userID, path)
	if err != nil {
		fatal("Failed to check source", err)
	}
	if existing != nil {
		fmt.Printf("Source already registered with id %d.\n", existing.ID)
		return
	}

	src := &domain.Source{UserID: userID, Path: path, Type: syncpkg.SourceType(path)}
	id, err := db.InsertSource(ctx, src)
	if err != nil {
		fatal("Failed to add source", err)
	}
	fmt.Printf("Added %s source %d: %s\n", src.Type, id, path)
}

func parseQuality(s string) sm2.Quality {
	if s == "" {
		fatal("Missing --quality", fmt.Errorf("expected again, good or easy"))
	}
	q, err := sm2.ParseQuality(s)
	if err != nil {
		fatal("Invalid --quality", err)
	}
	return q
}

// truncate shortens s to at most n runes, cutting on rune boundaries so
// multibyte card text never turns into invalid UTF-8.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
