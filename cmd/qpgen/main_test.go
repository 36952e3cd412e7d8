package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/RAHUL-DevelopeRR/QP/internal/generate"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

func TestNormalizeBasePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/", ""},
		{"qp", "/qp"},
		{"/qp/", "/qp"},
		{" /cia/qp// ", "/cia/qp"},
	}
	for _, tt := range tests {
		if got := normalizeBasePath(tt.in); got != tt.want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLayoutCommand(t *testing.T) {
	cmd := layoutCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"QP-I (60 marks)",
		"PART - B (4 x 12 = 48 Marks): 12 rows, either/or pairs",
		"PART - C (1 x 16 = 16 Marks): 3 rows, either/or pairs",
		"CIA-II (CIA-2): Unit III and Unit IV, CO3 and CO4",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("layout output missing %q:\n%s", want, out.String())
		}
	}
}

func TestHashKey(t *testing.T) {
	cmd := hashKeyCmd()
	if err := cmd.Flags().Set("cost", "4"); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("correct horse\n"))
	cmd.SetOut(&out)
	if err := runHashKey(cmd, nil); err != nil {
		t.Fatal(err)
	}
	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")); err != nil {
		t.Errorf("printed hash does not match the key: %v", err)
	}

	cmd.SetIn(strings.NewReader("short\n"))
	if err := runHashKey(cmd, nil); err == nil {
		t.Error("expected an error for a short key")
	}
}

func TestInputsFromFlags(t *testing.T) {
	dir := t.TempDir()
	syllabus := filepath.Join(dir, "syllabus.txt")
	if err := os.WriteFile(syllabus, []byte("Unit I: Sets. Unit II: Relations."), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("sample with overrides", func(t *testing.T) {
		cmd := generateCmd()
		if err := cmd.ParseFlags([]string{"--sample", "cs201", "--qp", "QP-II", "--syllabus", syllabus}); err != nil {
			t.Fatal(err)
		}
		in, err := inputsFromFlags(cmd, viperForCmd(cmd))
		if err != nil {
			t.Fatal(err)
		}
		if in.Selection.CourseCode != "CS201" || in.Selection.CIAType != model.CIA1 || in.Selection.QPType != model.QP2 {
			t.Errorf("selection = %+v", in.Selection)
		}
		if in.Syllabus != "Unit I: Sets. Unit II: Relations." || in.CDAP == "" {
			t.Errorf("file should replace only the syllabus: %+v", in)
		}
	})

	t.Run("missing inputs", func(t *testing.T) {
		cmd := generateCmd()
		if err := cmd.ParseFlags([]string{"--syllabus", syllabus, "--course-code", "MA101"}); err != nil {
			t.Fatal(err)
		}
		_, err := inputsFromFlags(cmd, viperForCmd(cmd))
		var missing *generate.MissingInputError
		if !errors.As(err, &missing) || strings.Join(missing.Fields, ",") != "cdap,template,courseTitle" {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("unknown selector", func(t *testing.T) {
		cmd := generateCmd()
		if err := cmd.ParseFlags([]string{"--sample", "CS201", "--cia", "CIA-3"}); err != nil {
			t.Fatal(err)
		}
		if _, err := inputsFromFlags(cmd, viperForCmd(cmd)); err == nil {
			t.Error("expected an error for an unknown CIA period")
		}
	})
}
