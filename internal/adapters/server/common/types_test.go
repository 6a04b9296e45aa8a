package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/hylla/minikan/internal/app"
	"github.com/hylla/minikan/internal/domain"
)

func TestIDAcceptsStringsAndNumbers(t *testing.T) {
	var payload struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":"abc","b":42,"c":null}`), &payload); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if payload.A != "abc" || payload.B != "42" || payload.C != "" {
		t.Fatalf("unexpected ids %+v", payload)
	}
	if err := json.Unmarshal([]byte(`{"a":true}`), &payload); err == nil {
		t.Fatal("expected error for boolean id")
	}

	out, err := json.Marshal(Card{ID: "7", ColumnID: "3"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var raw map[string]any
	_ = json.Unmarshal(out, &raw)
	if raw["id"] != "7" || raw["columnId"] != "3" {
		t.Fatalf("ids must marshal as strings, got %s", out)
	}
}

func TestBoardMappingRoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	board := domain.Board{
		ID:        "b1",
		Name:      "Roadmap",
		CreatedAt: now,
		UpdatedAt: now,
		Columns: []domain.Column{
			{ID: "B", BoardID: "b1", Name: "Done", Position: 2, Cards: []domain.Card{}},
			{ID: "A", BoardID: "b1", Name: "To Do", Position: 1, Cards: []domain.Card{
				{ID: "X", ColumnID: "A", Title: "Card X", Position: 1, CreatedAt: now, UpdatedAt: now},
			}},
		},
	}
	wire := FromDomainBoard(board)
	if wire.Columns[0].ID != "A" || wire.Columns[1].ID != "B" {
		t.Fatalf("columns must be ordered by position, got %+v", wire.Columns)
	}
	back := wire.ToDomainBoard()
	if back.Columns[0].Cards[0].ColumnID != "A" || back.Columns[0].BoardID != "b1" {
		t.Fatalf("unexpected round trip %+v", back)
	}

	wire.Columns[0].Cards[0].ColumnID = ""
	if got := wire.ToDomainBoard().Columns[0].Cards[0].ColumnID; got != "A" {
		t.Fatalf("card should inherit column id, got %q", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("wrap: %w", domain.ErrInvalidTitle), http.StatusBadRequest, ErrorTypeValidation},
		{ErrInvalidRequest, http.StatusBadRequest, ErrorTypeValidation},
		{app.ErrInvalidCredentials, http.StatusUnauthorized, ErrorTypeUnauthorized},
		{app.ErrNotFound, http.StatusNotFound, ErrorTypeNotFound},
		{app.ErrConflict, http.StatusConflict, ErrorTypeConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrorTypeInternal},
	}
	for _, tc := range cases {
		status, kind := Classify(tc.err)
		if status != tc.status || kind != tc.kind {
			t.Fatalf("Classify(%v) = %d/%s, want %d/%s", tc.err, status, kind, tc.status, tc.kind)
		}
	}
	if got := PublicMessage(errors.New("disk on fire")); got != "internal server error" {
		t.Fatalf("internal errors must not leak, got %q", got)
	}
	details := ValidationDetails(fmt.Errorf("create card: %w", domain.ErrInvalidTitle))
	if len(details) != 1 || details[0].Path != "title" {
		t.Fatalf("unexpected details %+v", details)
	}
}
