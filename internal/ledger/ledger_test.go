package ledger

import (
	"context"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/viswatch/internal/dbopen"
	"github.com/hazyhaar/viswatch/internal/sink"
	"github.com/hazyhaar/viswatch/match"
)

var _ sink.Sink = (*Store)(nil)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return &Store{DB: db}
}

func report(id string, at time.Time, res match.Result) match.Report {
	r := match.NewReport(id, res, res.DiffPath)
	r.Timestamp = at
	return r
}

func TestRecordAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	score := 0.0

	in := report("r1", at, match.Result{
		Kind:      match.KindElement,
		Verdict:   match.Pass,
		Attempts:  2,
		Template:  "logo.png",
		Selector:  "id:logo",
		Score:     &score,
		Tolerance: 5,
		Candidate: "/out/viswatch-ele_x.png",
		DiffPath:  "/out/viswatch-result_x.png",
	})
	if err := s.Record(ctx, in); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("report not found")
	}
	if got.Result.Score == nil || *got.Result.Score != 0 {
		t.Fatalf("zero score lost: %v", got.Result.Score)
	}
	if got.Result.Verdict != match.Pass || got.Result.Selector != "id:logo" || got.Result.Attempts != 2 {
		t.Fatalf("got %+v", got.Result)
	}
	if !got.Timestamp.Equal(at) {
		t.Fatalf("timestamp: got %v, want %v", got.Timestamp, at)
	}
	if got.HTML != in.HTML || got.HTML == "" {
		t.Fatalf("html: got %q", got.HTML)
	}

	if err := s.Record(ctx, in); err == nil {
		t.Fatal("duplicate id accepted")
	}
}

func TestGet_Missing(t *testing.T) {
	got, err := testStore(t).Get(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestRecord_AbsentScoreAndLocation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Report(ctx, report("a", time.Now(), match.Result{Kind: match.KindElement, Verdict: match.Fail, Template: "t.png"})); err != nil {
		t.Fatal(err)
	}
	if err := s.Report(ctx, report("b", time.Now(), match.Result{
		Kind: match.KindScreen, Verdict: match.Pass, Template: "t.png", Points: 40, Location: &image.Point{X: 3, Y: 4},
	})); err != nil {
		t.Fatal(err)
	}

	a, _ := s.Get(ctx, "a")
	if a.Result.Score != nil || a.Result.Location != nil {
		t.Fatalf("absent fields materialized: %+v", a.Result)
	}
	b, _ := s.Get(ctx, "b")
	if b.Result.Location == nil || *b.Result.Location != (image.Point{X: 3, Y: 4}) || b.Result.Points != 40 {
		t.Fatalf("got %+v", b.Result)
	}
}

func TestList_Filters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := []struct {
		id       string
		kind     match.Kind
		verdict  match.Verdict
		template string
	}{
		{"1", match.KindScreen, match.Pass, "a.png"},
		{"2", match.KindElement, match.Fail, "a.png"},
		{"3", match.KindElement, match.Pass, "b.png"},
		{"4", match.KindScreen, match.Fail, "b.png"},
	}
	for i, r := range rows {
		rep := report(r.id, base.Add(time.Duration(i)*time.Minute), match.Result{Kind: r.kind, Verdict: r.verdict, Template: r.template})
		if err := s.Record(ctx, rep); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].ID != "4" || all[3].ID != "1" {
		t.Fatalf("order: got %d rows, first %q", len(all), all[0].ID)
	}

	fail := match.Fail
	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"kind", Filter{Kind: match.KindElement}, []string{"3", "2"}},
		{"template", Filter{Template: "a.png"}, []string{"2", "1"}},
		{"verdict", Filter{Verdict: &fail}, []string{"4", "2"}},
		{"limit", Filter{Limit: 1}, []string{"4"}},
	}
	for _, tt := range tests {
		got, err := s.List(ctx, tt.f)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("%s: got %d rows, want %d", tt.name, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Errorf("%s: row %d = %q, want %q", tt.name, i, got[i].ID, tt.want[i])
			}
		}
	}

	stats, err := s.StatsByTemplate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 || stats[0].Template != "b.png" || stats[0].Passed != 1 || stats[0].Failed != 1 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestOpen_File(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Record(context.Background(), report("x", time.Now(), match.Result{Kind: match.KindScreen, Template: "t"})); err != nil {
		t.Fatal(err)
	}
}
