package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/slidequiz/internal/docx"
	"github.com/pavelanni/slidequiz/internal/exam"
	"github.com/pavelanni/slidequiz/internal/extract"
	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
	"github.com/pavelanni/slidequiz/internal/intake"
	"github.com/pavelanni/slidequiz/internal/llm"
	"github.com/pavelanni/slidequiz/internal/llm/prompts"
	"github.com/pavelanni/slidequiz/internal/model"
	"github.com/pavelanni/slidequiz/internal/pool"
	"github.com/pavelanni/slidequiz/internal/render"
	"github.com/pavelanni/slidequiz/internal/store"
	"github.com/pavelanni/slidequiz/internal/workspace"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [flags] slides.pdf...",
		Short: "Draft a question bank from PDF slides without the web interface",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output bank JSON path (- for stdout)")
	addGenerationFlags(f)
	addLogFlags(f)
	return cmd
}

func composeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose an exam and its answer key from bank files",
		RunE:  runCompose,
	}
	f := cmd.Flags()
	f.StringSliceP("bank", "b", nil, "Bank JSON files (repeatable); plain question lists are named after the file")
	f.IntP("target", "n", 40, "Number of questions")
	f.String("mode", "auto", "Allocation mode (auto, manual)")
	f.StringToInt("count", nil, "Questions per topic in manual mode (topic=n, repeatable)")
	f.Uint64("seed", 0, "Random seed for a reproducible exam (0 = random)")
	f.Bool("allow-incomplete", false, "Write the exam even when the bank cannot fill --target")
	f.String("header", "", "JSON file with the sheet header (default: built-in header)")
	f.StringP("lang", "l", "es", "Language of document labels (es, en)")
	f.String("exam", "exam.docx", "Output path for the exam sheet")
	f.String("key", "key.docx", "Output path for the answer key")
	f.String("selection", "", "Also write the drawn selection as JSON to this path")
	addLogFlags(f)
	_ = cmd.MarkFlagRequired("bank")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an instructor's question bank as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "slidequiz.db", "SQLite database path")
	f.StringP("user", "u", "", "Username whose bank to export (required)")
	f.Int64("topic", 0, "Export only this topic ID (0 = all topics)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	gen, llmCfg, err := newGenerator(ctx, v)
	if err != nil {
		return err
	}
	lang := prompts.Spanish
	if l := v.GetString("question-lang"); prompts.IsValidLanguage(l) {
		lang = prompts.Language(l)
	}
	counts := defaultCounts(v)
	ext := extract.New()

	bank := model.BankExport{Exported: time.Now().UTC()}
	for _, path := range args {
		topic := workspace.TopicName(path)
		src, err := extractFile(ctx, ext, topic, path)
		if err != nil {
			if errors.Is(err, extract.ErrNoText) {
				slog.Warn("no extractable text, skipping", "path", path)
				continue
			}
			return err
		}

		genCtx, cancel := ctx, context.CancelFunc(func() {})
		if llmCfg.Timeout > 0 {
			genCtx, cancel = context.WithTimeout(ctx, llmCfg.Timeout)
		}
		out, err := gen.Generate(genCtx, llm.GenerateInput{
			Topic:    topic,
			Text:     src.Text,
			Counts:   counts,
			Language: lang,
		})
		cancel()
		if err != nil {
			slog.Warn("question generation failed", "topic", topic, "error", err)
			continue
		}
		for _, rej := range out.Rejected {
			slog.Warn("rejected generated question", "topic", topic, "error", rej)
		}

		te := model.TopicExport{Name: topic}
		for _, q := range out.Questions {
			te.Questions = append(te.Questions, model.ExportQuestion(q))
		}
		bank.Topics = append(bank.Topics, te)
		slog.Info("generated questions", "topic", topic, "pages", src.Pages, "accepted", len(out.Questions))
	}
	return writeJSON(v.GetString("output"), bank)
}

func extractFile(ctx context.Context, ext *extract.Extractor, topic, path string) (extract.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return extract.Source{}, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return extract.Source{}, err
	}
	return ext.Extract(ctx, topic, f, info.Size())
}

func runCompose(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	p := pool.New()
	for _, path := range v.GetStringSlice("bank") {
		if err := loadBank(p, path); err != nil {
			return err
		}
	}

	mode := exam.Automatic()
	switch strings.ToLower(v.GetString("mode")) {
	case "auto", string(exam.ModeAutomatic):
	case string(exam.ModeManual):
		counts, err := cmd.Flags().GetStringToInt("count")
		if err != nil {
			return err
		}
		mode = exam.Manual(counts)
	default:
		return fmt.Errorf("unknown mode %q", v.GetString("mode"))
	}

	var rng exam.Rand = exam.DefaultRand()
	if seed := v.GetUint64("seed"); seed != 0 {
		rng = exam.NewRand(seed)
	}

	target := v.GetInt("target")
	composer := exam.NewComposer(rng, exam.Policy{RequireExact: !v.GetBool("allow-incomplete")})
	res, err := composer.Compose(p, target, mode)
	for _, w := range res.Warnings {
		slog.Warn(w)
	}
	if res.Excluded > 0 {
		slog.Warn("left out incomplete questions", "count", res.Excluded)
	}
	if err != nil {
		return err
	}
	if res.Shortfall > 0 {
		slog.Warn("exam is shorter than requested", "target", target, "got", res.Selection.Len())
	}

	header := model.DefaultSheetHeader()
	if path := v.GetString("header"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if err := json.Unmarshal(data, &header); err != nil {
			return fmt.Errorf("parse header %s: %w", path, err)
		}
	}
	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	r := render.New(header, appI18n.DocumentLabels(context.Background()))

	if err := writeDocument(v.GetString("exam"), r.RenderExam(res.Selection)); err != nil {
		return err
	}
	if err := writeDocument(v.GetString("key"), r.RenderKey(res.Selection)); err != nil {
		return err
	}
	if path := v.GetString("selection"); path != "" {
		if err := writeJSON(path, res.Selection); err != nil {
			return err
		}
	}
	slog.Info("exam composed", "selection", res.Selection.ID(), "questions", res.Selection.Len(),
		"exam", v.GetString("exam"), "key", v.GetString("key"))
	return nil
}

// loadBank adds every topic of a bank file to the pool.
func loadBank(p *pool.TopicPool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	fallback := workspace.TopicName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	topics, err := intake.ParseBank(data, fallback)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, t := range topics {
		for _, rej := range t.Rejected {
			slog.Warn("skipping question", "path", path, "topic", t.Name, "error", rej)
		}
		p.Add(t.Name, t.Questions...)
		slog.Info("loaded topic", "path", path, "topic", t.Name, "questions", len(t.Questions))
	}
	return nil
}

func writeDocument(path string, doc render.Document) error {
	for _, w := range doc.Warnings {
		slog.Warn("document warning", "path", path, "warning", w)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := docx.Write(f, doc); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	user, err := db.GetUserByUsername(v.GetString("user"))
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %q not found", v.GetString("user"))
	}

	bank, err := db.ExportBank(user.ID, v.GetInt64("topic"))
	if err != nil {
		return fmt.Errorf("export bank: %w", err)
	}
	return writeJSON(v.GetString("output"), bank)
}

// writeJSON writes v indented to path, or to stdout for "-".
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
