package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"sellerpulse/internal/config"
	"sellerpulse/internal/exporter"
	"sellerpulse/internal/importer"
	"sellerpulse/internal/model"
	"sellerpulse/internal/parser"
	"sellerpulse/internal/server"
	"sellerpulse/internal/store"
)

func sourceFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "source",
		Aliases:  []string{"s"},
		Usage:    "Export format: wb or ozon",
		Required: true,
	}
}

func sourceOf(c *cli.Context) (model.Source, error) {
	source := model.Source(c.String("source"))
	if !source.Valid() {
		return "", fmt.Errorf("unsupported source %q (want wb or ozon)", source)
	}
	return source, nil
}

func (e *env) openStore() (*store.Store, error) {
	if _, err := config.EnsureDataDir(e.cfg); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	return store.New(config.DBPath(e.cfg))
}

// =============================================================================
// PARSE
// =============================================================================

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse one file and print the result as JSON (nothing is stored)",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			sourceFlag(),
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Omit rows, print diagnostics, warnings and errors only",
			},
		},
		Action: func(c *cli.Context) error {
			source, err := sourceOf(c)
			if err != nil {
				return err
			}
			if c.NArg() != 1 {
				return cli.Exit("parse expects exactly one FILE", 2)
			}
			path := c.Args().First()
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			res := parser.Parse(source, parser.File{Name: filepath.Base(path), Content: bytes.NewReader(content)})
			if c.Bool("summary") {
				res.Rows = nil
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.OK() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// =============================================================================
// IMPORT
// =============================================================================

func importCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Parse files concurrently and store accepted batches",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			sourceFlag(),
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Import even if identical content was imported before",
			},
		},
		Action: func(c *cli.Context) error {
			source, err := sourceOf(c)
			if err != nil {
				return err
			}
			if c.NArg() == 0 {
				return cli.Exit("import expects at least one FILE", 2)
			}

			files := make([]importer.ImportOptions, 0, c.NArg())
			for _, path := range c.Args().Slice() {
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				files = append(files, importer.ImportOptions{
					Source:   source,
					Filename: filepath.Base(path),
					Content:  content,
					Force:    c.Bool("force"),
				})
			}

			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			outcomes := importer.NewCoordinator(st, e.log).ImportAll(c.Context, files)
			failed := 0
			w := c.App.Writer
			for _, out := range outcomes {
				switch {
				case out.Err == nil:
					fmt.Fprintf(w, "OK    %s: batch %s, %d rows, %d skipped, %d warnings\n",
						out.Filename, out.Batch.ID, out.Batch.RowCount, out.Batch.RowsSkipped, len(out.Batch.Warnings))
				case errors.Is(out.Err, importer.ErrDuplicateImport):
					fmt.Fprintf(w, "SKIP  %s: %v\n", out.Filename, out.Err)
				default:
					failed++
					fmt.Fprintf(w, "FAIL  %s: %v\n", out.Filename, out.Err)
				}
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, len(outcomes)), 1)
			}
			return nil
		},
	}
}

// =============================================================================
// IMPORTS
// =============================================================================

func importsCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "imports",
		Usage: "List stored batches, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 20,
				Usage: "Maximum number of batches (0 = all)",
			},
		},
		Action: func(c *cli.Context) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			batches, err := st.ListBatches(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSOURCE\tFILE\tPERIOD\tROWS\tSKIPPED\tIMPORTED")
			for i := range batches {
				b := &batches[i]
				period := "-"
				if p := b.Period(); p != nil {
					period = p.Start.Format("02.01.2006") + "-" + p.End.Format("02.01.2006")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					b.ID, b.Source, b.Filename, period, b.RowCount, b.RowsSkipped, b.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

// =============================================================================
// EXPORT
// =============================================================================

func exportCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a stored batch to an .xlsx file",
		ArgsUsage: "BATCH_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output path (default: <file>-normalized.xlsx)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("export expects exactly one BATCH_ID", 2)
			}
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			id := c.Args().First()
			batch, err := st.GetBatch(c.Context, id)
			if err != nil {
				return fmt.Errorf("batch %s: %w", id, err)
			}
			f, err := exporter.NewExporter(st, e.cfg.Export.TemplatePath).Export(c.Context, exporter.ExportOptions{BatchID: id})
			if err != nil {
				return err
			}
			defer f.Close()

			out := c.String("out")
			if out == "" {
				out = exporter.FileName(batch)
			}
			if err := f.SaveAs(out); err != nil {
				return err
			}
			e.log.Info("exported", zap.String("batch", id), zap.String("path", out))
			return nil
		},
	}
}

// =============================================================================
// SERVE
// =============================================================================

func serveCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "API server port (overrides config.toml)",
				EnvVars: []string{"SELLERPULSE_PORT"},
			},
			&cli.BoolFlag{
				Name:  "dev",
				Usage: "Development mode",
			},
		},
		Action: func(c *cli.Context) error {
			if c.IsSet("port") {
				e.cfg.Server.Port = c.Int("port")
			}
			if c.Bool("dev") {
				e.cfg.Server.DevMode = true
			}

			srv, err := server.NewServer(e.cfg, e.log)
			if err != nil {
				return err
			}
			defer srv.Close()

			return srv.Run(c.Context, fmt.Sprintf(":%d", e.cfg.Server.Port))
		},
	}
}

// =============================================================================
// INIT-CONFIG
// =============================================================================

func initConfigCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "init-config",
		Usage: "Write the effective configuration to config.toml next to the executable",
		Action: func(c *cli.Context) error {
			if err := config.SaveConfig(e.cfg); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "config.toml written")
			return nil
		},
	}
}
