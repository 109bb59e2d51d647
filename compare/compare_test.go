package compare

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// noise fills a w x h image with a deterministic pattern that has no
// repeating structure at the sizes used here.
func noise(w, h int, seed uint32) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	s := seed
	for i := 0; i < len(img.Pix); i += 4 {
		s = s*1664525 + 1013904223
		v := uint8(s >> 24)
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v/2, 255-v, 255
	}
	return img
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

func save(t *testing.T, img image.Image, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPixel_Identical(t *testing.T) {
	img := noise(20, 10, 1)
	a, b := save(t, img, "a.png"), save(t, img, "b.png")
	out := filepath.Join(t.TempDir(), "diff.png")

	s, err := (&Pixel{}).Diff(context.Background(), a, b, out)
	if err != nil {
		t.Fatal(err)
	}
	if !s.OK || s.Value != 0 {
		t.Fatalf("score: got %+v, want present zero", s)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("diff image not written: %v", err)
	}
}

func TestPixel_CountsChangedPixels(t *testing.T) {
	white := color.NRGBA{255, 255, 255, 255}
	ref := solid(10, 10, white)
	got := solid(10, 10, white)
	got.SetNRGBA(3, 4, color.NRGBA{0, 0, 0, 255})
	got.SetNRGBA(5, 5, color.NRGBA{250, 255, 255, 255})
	a, b := save(t, ref, "a.png"), save(t, got, "b.png")
	out := filepath.Join(t.TempDir(), "diff.png")

	tests := []struct {
		threshold int
		want      float64
	}{
		{0, 2},
		{10, 1},
		{800, 0},
	}
	for _, tt := range tests {
		s, err := (&Pixel{Threshold: tt.threshold}).Diff(context.Background(), a, b, out)
		if err != nil {
			t.Fatal(err)
		}
		if !s.OK || s.Value != tt.want {
			t.Errorf("threshold %d: got %+v, want %v", tt.threshold, s, tt.want)
		}
	}

	d, err := imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if c := color.NRGBAModel.Convert(d.At(3, 4)).(color.NRGBA); c != changedColor {
		t.Errorf("changed pixel drawn as %v", c)
	}
}

func TestPixel_SizeMismatchHasNoScore(t *testing.T) {
	a := save(t, noise(10, 10, 1), "a.png")
	b := save(t, noise(11, 10, 1), "b.png")
	s, err := (&Pixel{}).Diff(context.Background(), a, b, "")
	if err != nil {
		t.Fatal(err)
	}
	if s.OK {
		t.Fatalf("got %+v, want absent", s)
	}
}

func TestPixel_MissingFile(t *testing.T) {
	a := save(t, noise(4, 4, 1), "a.png")
	if _, err := (&Pixel{}).Diff(context.Background(), a, filepath.Join(t.TempDir(), "nope.png"), ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseAE(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"0", 0, true},
		{"1234\n", 1234, true},
		{"517 (0.00789)", 517, true},
		{"", 0, false},
		{"compare: image widths or heights differ", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseAE(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseAE(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMagick_MissingBinary(t *testing.T) {
	m := &Magick{Binary: filepath.Join(t.TempDir(), "no-such-compare")}
	if _, err := m.Diff(context.Background(), "a.png", "b.png", ""); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestCorrelation_FindsTemplate(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		at     image.Point
		tw, th int
	}{
		{"full resolution", 120, 80, image.Pt(37, 21), 30, 20},
		{"coarse to fine", 240, 180, image.Pt(96, 60), 64, 48},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			screen := noise(tt.w, tt.h, 7)
			tmpl := imaging.Crop(screen, image.Rectangle{Min: tt.at, Max: tt.at.Add(image.Pt(tt.tw, tt.th))})
			path := save(t, tmpl, "ref.png")
			outDir := t.TempDir()

			points, loc, err := (&Correlation{}).Search(context.Background(), encode(t, screen), path, 10, outDir)
			if err != nil {
				t.Fatal(err)
			}
			if loc == nil {
				t.Fatalf("template not found (points %d)", points)
			}
			want := image.Pt(tt.at.X+tt.tw/2, tt.at.Y+tt.th/2)
			if *loc != want {
				t.Fatalf("location: got %v, want %v", *loc, want)
			}
			if points != tt.tw*tt.th {
				t.Fatalf("points: got %d, want %d", points, tt.tw*tt.th)
			}
			if _, err := os.Stat(filepath.Join(outDir, "search_ref.png")); err != nil {
				t.Fatalf("outlined screenshot not written: %v", err)
			}
		})
	}
}

func TestCorrelation_AbsentTemplate(t *testing.T) {
	screen := noise(100, 60, 7)
	path := save(t, noise(20, 20, 99), "ref.png")

	_, loc, err := (&Correlation{}).Search(context.Background(), encode(t, screen), path, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if loc != nil {
		t.Fatalf("found unrelated template at %v", *loc)
	}
}

func TestCorrelation_MinPoints(t *testing.T) {
	screen := noise(60, 40, 3)
	tmpl := imaging.Crop(screen, image.Rect(10, 10, 22, 22))
	path := save(t, tmpl, "ref.png")

	points, loc, err := (&Correlation{}).Search(context.Background(), encode(t, screen), path, 12*12+1, "")
	if err != nil {
		t.Fatal(err)
	}
	if loc != nil || points != 144 {
		t.Fatalf("got points=%d loc=%v, want 144 and no location", points, loc)
	}
}

func TestCorrelation_TemplateLargerThanScreen(t *testing.T) {
	path := save(t, noise(50, 50, 1), "ref.png")
	points, loc, err := (&Correlation{}).Search(context.Background(), encode(t, noise(20, 20, 1)), path, 0, "")
	if err != nil || loc != nil || points != 0 {
		t.Fatalf("got %d, %v, %v", points, loc, err)
	}
}

func TestCorrelation_FlatRegions(t *testing.T) {
	screen := solid(40, 40, color.NRGBA{255, 255, 255, 255})
	for y := 20; y < 30; y++ {
		for x := 5; x < 15; x++ {
			screen.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
		}
	}
	path := save(t, solid(10, 10, color.NRGBA{0, 0, 0, 255}), "ref.png")

	_, loc, err := (&Correlation{}).Search(context.Background(), encode(t, screen), path, 100, "")
	if err != nil {
		t.Fatal(err)
	}
	if loc == nil || *loc != image.Pt(10, 25) {
		t.Fatalf("location: got %v, want (10,25)", loc)
	}
}

func TestFactories(t *testing.T) {
	for _, name := range []string{"pixel", "magick", "PIXEL"} {
		if _, err := NewDiffer(name, Options{}); err != nil {
			t.Errorf("NewDiffer(%q): %v", name, err)
		}
	}
	if _, err := NewSearcher("ncc", Options{}); err != nil {
		t.Errorf("NewSearcher(ncc): %v", err)
	}
	if _, err := NewDiffer("phash", Options{}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("got %v, want ErrUnknownKind", err)
	}
	if _, err := NewSearcher("sift", Options{}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("got %v, want ErrUnknownKind", err)
	}
}
