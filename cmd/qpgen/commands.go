package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/RAHUL-DevelopeRR/QP/internal/bank"
	"github.com/RAHUL-DevelopeRR/QP/internal/exam"
	"github.com/RAHUL-DevelopeRR/QP/internal/generate"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
	"github.com/RAHUL-DevelopeRR/QP/internal/samples"
	"github.com/RAHUL-DevelopeRR/QP/internal/store"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a question bank and paper once and write them to files",
		Long: `Generate runs the three generation steps for one exam and writes
bank.csv, paper.txt and paper.json (and bank.xlsx with --xlsx) to the output
directory. Inputs come from files, from an example subject (--sample), or from
a sample with individual files overriding it.`,
		RunE: runGenerate,
	}
	addLLMFlags(cmd)
	f := cmd.Flags()
	f.String("sample", "", "Start from the example subject with this course code or key")
	f.String("cdap", "", "Path to the CDAP rules")
	f.String("syllabus", "", "Path to the syllabus")
	f.String("template", "", "Path to the paper template rules")
	f.String("course-code", "", "Course code")
	f.String("course-title", "", "Course title")
	f.String("cia", string(model.CIA1), "CIA period (CIA-I, CIA-II)")
	f.String("qp", string(model.QP1), "Paper type (QP-I, QP-II)")
	f.StringP("output", "o", ".", "Output directory")
	f.Bool("xlsx", false, "Also write the bank as an Excel workbook")
	f.String("db", "", "SQLite database path for the generation log (empty disables it)")
	return cmd
}

// inputsFromFlags assembles generation inputs. Flags that were given override
// the sample; unset selectors keep the sample's values.
func inputsFromFlags(cmd *cobra.Command, v *viper.Viper) (model.Inputs, error) {
	var in model.Inputs
	if code := v.GetString("sample"); code != "" {
		s, ok := samples.ByCode(code)
		if !ok {
			return in, fmt.Errorf("unknown sample %q", code)
		}
		in = s.Inputs()
	}

	for _, f := range []struct {
		flag string
		dst  *string
	}{
		{"cdap", &in.CDAP},
		{"syllabus", &in.Syllabus},
		{"template", &in.Template},
	} {
		path := v.GetString(f.flag)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return in, fmt.Errorf("read %s: %w", f.flag, err)
		}
		*f.dst = string(data)
	}

	if s := v.GetString("course-code"); s != "" {
		in.Selection.CourseCode = s
	}
	if s := v.GetString("course-title"); s != "" {
		in.Selection.CourseTitle = s
	}
	if cmd.Flags().Changed("cia") || in.Selection.CIAType == "" {
		cia, err := exam.ParseCIA(v.GetString("cia"))
		if err != nil {
			return in, err
		}
		in.Selection.CIAType = cia
	}
	if cmd.Flags().Changed("qp") || in.Selection.QPType == "" {
		qp, err := exam.ParseQP(v.GetString("qp"))
		if err != nil {
			return in, err
		}
		in.Selection.QPType = qp
	}
	return in, generate.CheckInputs(in)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := inputsFromFlags(cmd, v)
	if err != nil {
		return err
	}

	var rec generate.Recorder
	if path := v.GetString("db"); path != "" {
		db, err := store.New(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		rec = db
	}
	gen, err := newGenerator(ctx, v, rec)
	if err != nil {
		return err
	}

	res, err := gen.Run(ctx, in)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	for _, rej := range res.Rejections {
		slog.Warn("rejected generated question", "index", rej.Index, "id", rej.ID, "reasons", strings.Join(rej.Reasons, "; "))
	}
	for _, w := range res.Rendered.Warnings {
		slog.Warn("paper layout", "warning", w)
	}

	dir := v.GetString("output")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	paperJSON, err := json.MarshalIndent(res.Paper, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	outputs := []output{
		{"bank.csv", func(w io.Writer) error { return bank.WriteCSV(w, res.Bank) }},
		{"paper.txt", func(w io.Writer) error { _, err := fmt.Fprintln(w, res.PaperText); return err }},
		{"paper.json", func(w io.Writer) error { _, err := fmt.Fprintf(w, "%s\n", paperJSON); return err }},
	}
	if v.GetBool("xlsx") {
		outputs = append(outputs, output{"bank.xlsx", func(w io.Writer) error { return bank.WriteXLSX(w, res.Bank) }})
	}
	for _, o := range outputs {
		path := filepath.Join(dir, o.name)
		if err := writeFile(path, o.write); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s: %d questions (%d rejected), %d paper warnings, written to %s\n",
		in.Selection.CourseCode, in.Selection.CIAType, in.Selection.QPType,
		len(res.Bank), len(res.Rejections), len(res.Rendered.Warnings), dir)
	return nil
}

// output is one file written by generate.
type output struct {
	name  string
	write func(io.Writer) error
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func layoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Print the paper layouts and CIA scopes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			for _, qp := range []model.QPType{model.QP1, model.QP2} {
				l := exam.LayoutFor(qp)
				fmt.Fprintf(w, "%s (%d marks)\n", qp, l.TotalMarks())
				for _, s := range l.Sections {
					pairing := ""
					if s.Paired {
						pairing = ", either/or pairs"
					}
					fmt.Fprintf(w, "  %s: %d rows%s\n", s.Title(), s.Rows(), pairing)
				}
			}
			for _, cia := range []model.CIAType{model.CIA1, model.CIA2} {
				s := exam.ScopeFor(cia)
				fmt.Fprintf(w, "%s (%s): %s, %s and %s\n", cia, exam.Label(cia), s.UnitNumerals(), s.COs[0], s.COs[1])
			}
			return nil
		},
	}
}

func hashKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-key",
		Short: "Hash an API access key for --access-hash",
		Long: `hash-key reads an access key from the terminal without echo, or from
standard input when it is not a terminal, and prints its bcrypt hash.`,
		RunE: runHashKey,
	}
	cmd.Flags().Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func runHashKey(cmd *cobra.Command, _ []string) error {
	cost, _ := cmd.Flags().GetInt("cost")

	var key string
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Access key: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		key = string(b)
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read key: %w", err)
		}
		key = strings.TrimRight(line, "\r\n")
	}
	if len(key) < 8 {
		return errors.New("access key must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(hash))
	return nil
}
