package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/examforge/internal/model"
	"github.com/pavelanni/examforge/internal/store"
)

func TestParseCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exam.txt")
	text := "1. MCQ: Pick one. (3 points)\nA) x\nB) y\nAnswer: A\n\n2. Short Answer: Define entropy."
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"parse", path, "--weights"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("parse: %v", err)
	}

	var got parseOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if len(got.Questions) != 2 {
		t.Fatalf("questions = %+v", got.Questions)
	}
	if got.Questions[0].CorrectAnswer != "A" || got.Questions[1].Type != model.QuestionShortAnswer {
		t.Errorf("questions = %+v", got.Questions)
	}
	if got.Weights[0] != 3 || got.Weights[1] != 1 {
		t.Errorf("weights = %v", got.Weights)
	}
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	repo := store.NewRepository(s)
	if err := repo.AppendResult(context.Background(), model.EvaluationResult{ExamID: "e1", Percentage: 80}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	outPath := filepath.Join(dir, "results.json")
	cmd := rootCmd()
	cmd.SetArgs([]string{"export", "--db", dbPath, "--output", outPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var export model.ResultsExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatal(err)
	}
	if export.Count != 1 || export.Results[0].ExamID != "e1" {
		t.Errorf("export = %+v", export)
	}
}
