package infra

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestExtractMarker(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantMarker string
		wantBody   string
		wantErr    bool
	}{
		{
			name:       "valid marker",
			query:      "--sql 7f3c1a52-9d4e-4b1c-8a2f-6e5d0c9b8a71\nselect 1;",
			wantMarker: "7f3c1a52-9d4e-4b1c-8a2f-6e5d0c9b8a71",
			wantBody:   "select 1;",
		},
		{
			name:       "leading whitespace trimmed",
			query:      "\n  --sql 7f3c1a52-9d4e-4b1c-8a2f-6e5d0c9b8a71\nselect 1;\n",
			wantMarker: "7f3c1a52-9d4e-4b1c-8a2f-6e5d0c9b8a71",
			wantBody:   "select 1;",
		},
		{
			name:    "missing marker line",
			query:   "select 1;",
			wantErr: true,
		},
		{
			name:    "marker not a uuid",
			query:   "--sql not-a-uuid\nselect 1;",
			wantErr: true,
		},
		{
			name:    "uppercase uuid rejected",
			query:   "--sql 7F3C1A52-9D4E-4B1C-8A2F-6E5D0C9B8A71\nselect 1;",
			wantErr: true,
		},
		{
			name:    "empty query",
			query:   "",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got marker %q", marker)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractMarker error: %v", err)
			}
			if marker != tc.wantMarker {
				t.Fatalf("marker = %q, want %q", marker, tc.wantMarker)
			}
			if strings.TrimSpace(body) != tc.wantBody {
				t.Fatalf("body = %q, want %q", body, tc.wantBody)
			}
		})
	}
}

func TestSQLRunnerRejectsUnmarkedQueries(t *testing.T) {
	r := NewSQLRunner(nil, zerolog.Nop())

	if _, err := r.Exec(context.Background(), "delete from batch_runs;"); err == nil {
		t.Fatalf("Exec must refuse a query without a marker")
	}
	if _, err := r.Query(context.Background(), "select 1;"); err == nil {
		t.Fatalf("Query must refuse a query without a marker")
	}
	row := r.QueryRow(context.Background(), "select 1;")
	var n int
	if err := row.Scan(&n); err == nil {
		t.Fatalf("QueryRow must surface the marker error through Scan")
	}
}
