// Command catalog manages the question catalog.
//
//	catalog import -f questions.yaml
//	catalog delete -id 42
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/catalog"
	"github.com/hrishabh6/algocrack/internal/config"
	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository/postgres"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n  %[1]s import -f <questions.yaml>\n  %[1]s delete -id <question id>\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}

	importer := catalog.NewImporter(postgres.NewPostgresQuestionRepository(dbPool), logger)

	switch os.Args[1] {
	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		path := fs.String("f", "", "question file (YAML)")
		_ = fs.Parse(os.Args[2:])
		if *path == "" {
			usage()
		}
		if err := runImport(ctx, importer, *path); err != nil {
			logger.Fatal("Import failed", zap.Error(err))
		}

	case "delete":
		fs := flag.NewFlagSet("delete", flag.ExitOnError)
		id := fs.Int64("id", 0, "question id")
		_ = fs.Parse(os.Args[2:])
		if *id <= 0 {
			usage()
		}
		if err := importer.Delete(ctx, *id); err != nil {
			if errors.Is(err, domain.ErrQuestionNotFound) {
				logger.Fatal("Question not found", zap.Int64("question_id", *id))
			}
			logger.Fatal("Delete failed", zap.Error(err))
		}

	default:
		usage()
	}
}

func runImport(ctx context.Context, importer *catalog.Importer, path string) error {
	file, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	created, err := importer.Import(ctx, file)
	for _, q := range created {
		fmt.Printf("%d\t%s\n", q.ID, q.Slug)
	}
	return err
}
