// tabletalk-seed generates a deterministic sample dataset and writes it
// to a local directory, optionally mirroring the files into the
// configured object store bucket.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/tabletalk/tabletalk/internal/config"
	"github.com/tabletalk/tabletalk/internal/dataset"
	"github.com/tabletalk/tabletalk/internal/demo"
	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/storage"
	s3store "github.com/tabletalk/tabletalk/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	seed := flag.Int64("seed", 1, "random seed")
	clients := flag.Int("clients", 8, "number of clients to generate")
	invoices := flag.Int("invoices", 40, "number of invoices to generate")
	format := flag.String("format", "csv", "output format: csv or parquet")
	outDir := flag.String("out", "data", "output directory")
	upload := flag.Bool("upload", false, "also upload the files to the configured object store")
	flag.Parse()

	cfg, err := config.LoadFromEnv("tabletalk-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	if *format != "csv" && *format != "parquet" {
		logger.Error("unsupported format", slog.String("format", *format))
		os.Exit(1)
	}

	bundle := demo.NewGenerator(demo.Config{
		Seed:     *seed,
		Clients:  *clients,
		Invoices: *invoices,
	}).Generate()
	if err := dataset.Validate(bundle); err != nil {
		logger.Error("generated bundle failed validation", slog.Any("error", err))
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Error("failed to create output directory", slog.Any("error", err))
		os.Exit(1)
	}

	var store *s3store.Store
	if *upload {
		store, err = s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	for _, table := range bundle.Tables() {
		var buf bytes.Buffer
		if *format == "parquet" {
			err = dataset.WriteParquet(&buf, table)
		} else {
			err = dataset.WriteCSV(&buf, table)
		}
		if err != nil {
			logger.Error("failed to encode table", slog.String("table", table.Name), slog.Any("error", err))
			os.Exit(1)
		}

		fileName := fmt.Sprintf("%s.%s", table.Name, *format)
		path := filepath.Join(*outDir, fileName)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			logger.Error("failed to write file", slog.String("path", path), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("wrote table",
			slog.String("path", path),
			slog.Int("rows", len(table.Rows)))

		if store != nil {
			_, err := store.Put(context.Background(), fileName, bytes.NewReader(buf.Bytes()), int64(buf.Len()), storage.PutOptions{ContentType: contentType(*format)})
			if err != nil {
				logger.Error("failed to upload table", slog.String("key", fileName), slog.Any("error", err))
				os.Exit(1)
			}
			logger.Info("uploaded table", slog.String("key", fileName), slog.String("bucket", cfg.ObjectStore.Bucket))
		}
	}
}

func contentType(format string) string {
	if format == "parquet" {
		return "application/vnd.apache.parquet"
	}
	return "text/csv"
}
