package bids

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nimh-dsst/dataset-browser/storage"
)

func newTestBrowser(t *testing.T) *Browser {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bids.sqlite")

	columns := []string{"ds__dataset", "ent__sub", "ent__datatype", "ent__suffix", "ent__task"}
	rows := []map[string]any{
		// Two anat scans for the same subject collapse into one tuple.
		{"ds__dataset": "ds000001", "ent__sub": "01", "ent__datatype": "anat", "ent__suffix": "T1w", "ent__task": nil},
		{"ds__dataset": "ds000001", "ent__sub": "01", "ent__datatype": "anat", "ent__suffix": "T1w", "ent__task": nil},
		{"ds__dataset": "ds000001", "ent__sub": "01", "ent__datatype": "func", "ent__suffix": "bold", "ent__task": "rest"},
		{"ds__dataset": "ds000001", "ent__sub": "02", "ent__datatype": "func", "ent__suffix": "bold", "ent__task": "rest"},
		{"ds__dataset": "ds000002", "ent__sub": "01", "ent__datatype": "anat", "ent__suffix": "T2w", "ent__task": nil},
	}

	if err := storage.WriteTable(ctx, path, "data", columns, rows, true); err != nil {
		t.Fatalf("WriteTable returned error: %v", err)
	}

	st, err := storage.NewSQLiteStorage(storage.SQLiteStorageConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStorage returned error: %v", err)
	}

	if err := st.Connect(ctx); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return NewBrowser(Config{}, st)
}

func TestSummary(t *testing.T) {
	b := newTestBrowser(t)

	acquisitions, err := b.Summary(context.Background(), Selection{})
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}

	want := []Acquisition{
		{Datatype: "anat", Suffix: "T1w", Task: "", Count: 1},
		{Datatype: "anat", Suffix: "T2w", Task: "", Count: 1},
		{Datatype: "func", Suffix: "bold", Task: "rest", Count: 2},
	}

	if !reflect.DeepEqual(acquisitions, want) {
		t.Fatalf("Summary() = %+v, want %+v", acquisitions, want)
	}
}

func TestSummaryWithSelection(t *testing.T) {
	b := newTestBrowser(t)

	acquisitions, err := b.Summary(context.Background(), Selection{Datatypes: []string{"func"}})
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}

	want := []Acquisition{
		{Datatype: "func", Suffix: "bold", Task: "rest", Count: 2},
	}

	if !reflect.DeepEqual(acquisitions, want) {
		t.Fatalf("Summary() = %+v, want %+v", acquisitions, want)
	}
}

func TestParticipants(t *testing.T) {
	b := newTestBrowser(t)

	participants, err := b.Participants(context.Background(), Selection{})
	if err != nil {
		t.Fatalf("Participants returned error: %v", err)
	}

	want := []Participant{
		{Dataset: "ds000001", Subject: "01"},
		{Dataset: "ds000001", Subject: "02"},
		{Dataset: "ds000002", Subject: "01"},
	}

	if !reflect.DeepEqual(participants, want) {
		t.Fatalf("Participants() = %+v, want %+v", participants, want)
	}
}

func TestParticipantsWithSelection(t *testing.T) {
	b := newTestBrowser(t)

	participants, err := b.Participants(context.Background(), Selection{Suffixes: []string{"T2w"}})
	if err != nil {
		t.Fatalf("Participants returned error: %v", err)
	}

	want := []Participant{{Dataset: "ds000002", Subject: "01"}}

	if !reflect.DeepEqual(participants, want) {
		t.Fatalf("Participants() = %+v, want %+v", participants, want)
	}
}

func TestDatatypesAndSuffixes(t *testing.T) {
	b := newTestBrowser(t)

	datatypes, err := b.Datatypes(context.Background())
	if err != nil {
		t.Fatalf("Datatypes returned error: %v", err)
	}
	if !reflect.DeepEqual(datatypes, []string{"anat", "func"}) {
		t.Fatalf("Datatypes() = %v", datatypes)
	}

	suffixes, err := b.Suffixes(context.Background())
	if err != nil {
		t.Fatalf("Suffixes returned error: %v", err)
	}
	if !reflect.DeepEqual(suffixes, []string{"T1w", "T2w", "bold"}) {
		t.Fatalf("Suffixes() = %v", suffixes)
	}
}

func TestParticipantsTSV(t *testing.T) {
	participants := []Participant{
		{Dataset: "ds000001", Subject: "01"},
		{Dataset: "ds000002", Subject: "03"},
	}

	b := NewBrowser(Config{}, nil)
	got := b.ParticipantsTSV(participants)
	want := "ds__dataset\tent__sub\nds000001\t01\nds000002\t03\n"
	if got != want {
		t.Fatalf("ParticipantsTSV() = %q, want %q", got, want)
	}
}

func TestParticipantsTSVUsesConfiguredColumns(t *testing.T) {
	b := NewBrowser(Config{DatasetColumn: "study", SubjectColumn: "subject"}, nil)

	got := b.ParticipantsTSV(nil)
	if got != "study\tsubject\n" {
		t.Fatalf("ParticipantsTSV() header = %q", got)
	}
}
