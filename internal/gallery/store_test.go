package gallery

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/imgbed/internal/apperr"
	"github.com/starford/imgbed/internal/models"
	"github.com/starford/imgbed/internal/storage"
)

func assetNames(t *testing.T, s *Store, category string) []string {
	t.Helper()
	assets, err := s.ListAssets(category)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, a.Name)
	}
	return names
}

func TestInsertIntoEmptyCategory(t *testing.T) {
	s, root := newTestStore(t)
	created, err := s.CreateCategory("cats")
	if err != nil || !created {
		t.Fatalf("CreateCategory = %v, %v", created, err)
	}

	name := mustInsert(t, s, "cats", "A")
	if name != "1.webp" {
		t.Errorf("name = %q, want 1.webp", name)
	}
	if diff := cmp.Diff(map[string]string{"1.webp": "enc:img:A"}, contents(t, filepath.Join(root, "cats"))); diff != "" {
		t.Errorf("disk mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteMiddleRenumbers(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	for _, p := range []string{"A", "B", "C"} {
		mustInsert(t, s, "c", p)
	}

	deleted, err := s.Delete("c", "2.webp")
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	want := map[string]string{"1.webp": "enc:img:A", "2.webp": "enc:img:C"}
	if diff := cmp.Diff(want, contents(t, filepath.Join(root, "c"))); diff != "" {
		t.Errorf("disk mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteFirstRenumbers(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	for _, p := range []string{"A", "B", "C"} {
		mustInsert(t, s, "c", p)
	}

	if _, err := s.Delete("c", "1.webp"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := map[string]string{"1.webp": "enc:img:B", "2.webp": "enc:img:C"}
	if diff := cmp.Diff(want, contents(t, filepath.Join(root, "c"))); diff != "" {
		t.Errorf("disk mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertAfterGapUsesMaxPlusOne(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	writeRaw(t, root, "c", "1.webp", "one")
	writeRaw(t, root, "c", "3.webp", "three")

	if name := mustInsert(t, s, "c", "new"); name != "4.webp" {
		t.Errorf("name = %q, want 4.webp", name)
	}
	if diff := cmp.Diff([]string{"1.webp", "3.webp", "4.webp"}, assetNames(t, s, "c")); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestListCategories(t *testing.T) {
	s, root := newTestStore(t)

	got, err := s.ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty root: got %v", got)
	}

	for _, c := range []string{"zebra", "alpha", "mid"} {
		mustCreate(t, s, c)
	}
	writeRaw(t, root, "", "loose.webp", "not a category")
	for _, dir := range []string{".git", " padded"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	got, err = s.ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if diff := cmp.Diff([]string{"alpha", "mid", "zebra"}, got); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestListCategoriesMissingRoot(t *testing.T) {
	fs, err := storage.NewFS(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	got, err := New(fs, fakeCodec{}).ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

func TestCreateCategoryExisting(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	mustInsert(t, s, "c", "A")
	before := contents(t, filepath.Join(root, "c"))

	created, err := s.CreateCategory("c")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if created {
		t.Error("second CreateCategory reported creation")
	}
	if diff := cmp.Diff(before, contents(t, filepath.Join(root, "c"))); diff != "" {
		t.Errorf("category mutated (-want +got):\n%s", diff)
	}
}

func TestCreateCategoryRejectsUnsafeNames(t *testing.T) {
	s, root := newTestStore(t)
	for _, name := range []string{"", ".", "..", "../up", "a/b", `a\b`, ".hidden", " padded", "nul\x00", strings.Repeat("x", 256)} {
		_, err := s.CreateCategory(name)
		if !errors.Is(err, apperr.ErrInvalidName) {
			t.Errorf("CreateCategory(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root: %v", err)
	}
	if names := dirNames(t, root); len(names) != 0 {
		t.Errorf("root mutated: %v", names)
	}
}

func TestListAssetsMissingCategory(t *testing.T) {
	s, _ := newTestStore(t)
	got, err := s.ListAssets("nope")
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestListAssetsOrdering(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	for _, n := range []string{"10.webp", "2.webp", "abc.webp", "1.webp", "007.webp", "notes.txt"} {
		writeRaw(t, root, "c", n, n)
	}
	if err := os.Mkdir(filepath.Join(root, "c", "5.webp"), 0o755); err != nil {
		t.Fatal(err)
	}

	assets, err := s.ListAssets("c")
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	type row struct {
		Name  string
		Index int
	}
	var got []row
	for _, a := range assets {
		got = append(got, row{a.Name, a.Index})
	}
	want := []row{{"1.webp", 1}, {"2.webp", 2}, {"10.webp", 10}, {"007.webp", 0}, {"abc.webp", 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertMissingCategory(t *testing.T) {
	s, root := newTestStore(t)
	_, err := s.Insert(context.Background(), "ghost", strings.NewReader("img:A"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(root, "ghost")); !errors.Is(err, os.ErrNotExist) {
		t.Error("Insert must not create the category")
	}
}

func TestInsertFailuresLeaveNothing(t *testing.T) {
	cases := map[string]struct {
		src     string
		opts    []Option
		wantErr error
	}{
		"undecodable":  {src: "garbage", wantErr: apperr.ErrUnsupportedImage},
		"encode fails": {src: "img:encfail", wantErr: apperr.ErrUnsupportedImage},
		"too large":    {src: "img:" + strings.Repeat("x", 64), opts: []Option{WithMaxSourceBytes(16)}, wantErr: apperr.ErrTooLarge},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, root := newTestStore(t, tc.opts...)
			mustCreate(t, s, "c")
			mustInsert(t, s, "c", "ok")

			_, err := s.Insert(context.Background(), "c", strings.NewReader(tc.src))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if diff := cmp.Diff([]string{"1.webp"}, dirNames(t, filepath.Join(root, "c"))); diff != "" {
				t.Errorf("leftovers (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInsertCancelledContext(t *testing.T) {
	s, _ := newTestStore(t)
	mustCreate(t, s, "c")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Insert(ctx, "c", strings.NewReader("img:A")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestInsertFile(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	src := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(src, []byte("img:disk"), 0o644); err != nil {
		t.Fatal(err)
	}
	name, err := s.InsertFile(context.Background(), "c", src)
	if err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(root, "c", name))
	if string(data) != "enc:img:disk" {
		t.Errorf("content = %q", data)
	}

	if _, err := s.InsertFile(context.Background(), "c", filepath.Join(t.TempDir(), "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing source err = %v", err)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	writeRaw(t, root, "c", "1.webp", "one")
	writeRaw(t, root, "c", "3.webp", "three")
	before := contents(t, filepath.Join(root, "c"))

	for _, tc := range []struct{ category, name string }{{"c", "2.webp"}, {"ghost", "1.webp"}} {
		deleted, err := s.Delete(tc.category, tc.name)
		if err != nil || deleted {
			t.Errorf("Delete(%q, %q) = %v, %v; want false, nil", tc.category, tc.name, deleted, err)
		}
	}
	if diff := cmp.Diff(before, contents(t, filepath.Join(root, "c"))); diff != "" {
		t.Errorf("gap repaired by a no-op delete (-want +got):\n%s", diff)
	}
}

func TestDeleteLeavesUnmanagedFiles(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	mustInsert(t, s, "c", "A")
	writeRaw(t, root, "c", "notes.txt", "keep")
	writeRaw(t, root, "c", ".imgbed-tmp-123", "in flight")
	writeRaw(t, root, "c", ".hidden.webp", "hidden")
	before := contents(t, filepath.Join(root, "c"))

	for _, name := range []string{"notes.txt", ".imgbed-tmp-123", ".hidden.webp", ".webp"} {
		deleted, err := s.Delete("c", name)
		if err != nil || deleted {
			t.Errorf("Delete(%q) = %v, %v; want false, nil", name, deleted, err)
		}
	}
	if diff := cmp.Diff(before, contents(t, filepath.Join(root, "c"))); diff != "" {
		t.Errorf("unmanaged files touched (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1.webp"}, assetNames(t, s, "c")); diff != "" {
		t.Errorf("hidden file listed (-want +got):\n%s", diff)
	}
}

func TestInsertRefusesPastMaxIndex(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	top := strconv.Itoa(math.MaxInt) + ".webp"
	writeRaw(t, root, "c", top, "top")

	_, err := s.Insert(context.Background(), "c", strings.NewReader("img:x"))
	if !errors.Is(err, ErrSequenceFull) {
		t.Fatalf("Insert err = %v, want ErrSequenceFull", err)
	}
	if diff := cmp.Diff([]string{top}, dirNames(t, filepath.Join(root, "c"))); diff != "" {
		t.Errorf("files after refused insert (-want +got):\n%s", diff)
	}
}

func TestDeleteRejectsPathNames(t *testing.T) {
	s, _ := newTestStore(t)
	mustCreate(t, s, "c")
	for _, name := range []string{"../1.webp", "sub/1.webp", "..", ""} {
		if _, err := s.Delete("c", name); !errors.Is(err, apperr.ErrInvalidName) {
			t.Errorf("Delete(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestForeignEntriesNeverRenamed(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	writeRaw(t, root, "c", "1.webp", "one")
	writeRaw(t, root, "c", "3.webp", "three")
	writeRaw(t, root, "c", "cover.webp", "cover")
	writeRaw(t, root, "c", "0.webp", "zero")

	if _, err := s.Delete("c", "1.webp"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := map[string]string{"0.webp": "zero", "1.webp": "three", "cover.webp": "cover"}
	if diff := cmp.Diff(want, contents(t, filepath.Join(root, "c"))); diff != "" {
		t.Errorf("disk mismatch (-want +got):\n%s", diff)
	}
	if name := mustInsert(t, s, "c", "next"); name != "2.webp" {
		t.Errorf("next name = %q, want 2.webp", name)
	}
}

func TestRenumberIdempotent(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	for _, n := range []string{"2", "5", "9", "12"} {
		writeRaw(t, root, "c", n+".webp", "v"+n)
	}

	renamed, err := s.Renumber("c")
	if err != nil {
		t.Fatalf("Renumber: %v", err)
	}
	if renamed != 4 {
		t.Errorf("first pass renamed %d, want 4", renamed)
	}
	want := map[string]string{"1.webp": "v2", "2.webp": "v5", "3.webp": "v9", "4.webp": "v12"}
	if diff := cmp.Diff(want, contents(t, filepath.Join(root, "c"))); diff != "" {
		t.Errorf("disk mismatch (-want +got):\n%s", diff)
	}

	renamed, err = s.Renumber("c")
	if err != nil || renamed != 0 {
		t.Errorf("second pass = %d, %v; want 0, nil", renamed, err)
	}
}

func TestRenumberMissingCategory(t *testing.T) {
	s, _ := newTestStore(t)
	if n, err := s.Renumber("ghost"); err != nil || n != 0 {
		t.Errorf("Renumber = %d, %v", n, err)
	}
}

// TestDensityUnderRandomOperations checks that every insert/delete leaves
// indices {1..N} with content order preserved.
func TestDensityUnderRandomOperations(t *testing.T) {
	s, root := newTestStore(t)
	mustCreate(t, s, "c")
	rng := rand.New(rand.NewPCG(7, 11))

	var model []string // payloads in sequence order
	for step := 0; step < 120; step++ {
		if len(model) == 0 || rng.IntN(3) > 0 {
			payload := "p" + strconv.Itoa(step)
			mustInsert(t, s, "c", payload)
			model = append(model, payload)
		} else {
			i := rng.IntN(len(model))
			if _, err := s.Delete("c", strconv.Itoa(i+1)+".webp"); err != nil {
				t.Fatalf("step %d: Delete: %v", step, err)
			}
			model = append(model[:i], model[i+1:]...)
		}

		want := make(map[string]string, len(model))
		for i, p := range model {
			want[strconv.Itoa(i+1)+".webp"] = "enc:img:" + p
		}
		if diff := cmp.Diff(want, contents(t, filepath.Join(root, "c"))); diff != "" {
			t.Fatalf("step %d: disk mismatch (-want +got):\n%s", step, diff)
		}
	}
}

func TestAssetMetadata(t *testing.T) {
	s, _ := newTestStore(t)
	mustCreate(t, s, "c")
	mustInsert(t, s, "c", "A")
	assets, err := s.ListAssets("c")
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("len = %d", len(assets))
	}
	got := assets[0]
	if got.Category != "c" || got.Index != 1 || got.Size != int64(len("enc:img:A")) || got.ModTime.IsZero() {
		t.Errorf("asset = %+v", got)
	}
	if got.Foreign() {
		t.Error("numbered asset reported foreign")
	}
	if !(models.Asset{Name: "x.webp"}).Foreign() {
		t.Error("zero index must be foreign")
	}
}
