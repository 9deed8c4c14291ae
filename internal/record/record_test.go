package record

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/walker"
)

func TestDeriveURL(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		prefix string
		want   string
	}{
		{"suffix then prefix then underscores", "root/sub/a_b/my_page.md", "root/sub/", "ab/mypage"},
		{"markdown suffix", "root/sub/guide.markdown", "root/sub/", "guide"},
		{"git root prefix keeps leading slash", "/repo/_docs/install/index.md", "/repo", "/docs/install/index"},
		{"only first matching suffix", "/repo/docs/a.md.markdown", "/repo", "/docs/a.md"},
		{"markdown checked before md", "/repo/x.markdown", "/repo", "/x"},
		{"prefix not present", "/elsewhere/a.md", "/repo", "/elsewhere/a"},
		{"no suffix", "/repo/docs/LICENSE", "/repo", "/docs/LICENSE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveURL(tt.path, tt.prefix))
		})
	}
}

func TestDeriveURL_StrippingIsStableForCleanNames(t *testing.T) {
	// Given: a path whose stem does not itself end in a markdown suffix
	once := DeriveURL("/repo/docs/page.md", "/repo")

	// When: deriving again from the stripped form
	twice := DeriveURL(once, "/repo")

	// Then: nothing further is stripped
	assert.Equal(t, once, twice)
}

func TestDecodeLossy_DropsInvalidBytes(t *testing.T) {
	// Given: text with an invalid byte in the middle
	raw := []byte("caf\xc3\xa9 \xff bar")

	// Then: valid runes survive, the invalid byte is gone
	assert.Equal(t, "café  bar", DecodeLossy(raw))
}

func TestTransform_PopulatesRecord(t *testing.T) {
	// Given: a markdown file with an invalid byte
	root := t.TempDir()
	path := filepath.Join(root, "_docs", "my_page.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\xfe<b>body</b>"), 0o644))

	// When: transforming
	rec, err := NewTransformer().Transform(path, root)
	require.NoError(t, err)

	// Then: every field is set
	assert.Equal(t, "/docs/mypage", rec.URL)
	assert.Equal(t, "# Title\n<b>body</b>", rec.Content)
	assert.Equal(t, DocType, rec.Type)
	assert.Equal(t, DefaultVersion, rec.Version)
	assert.Equal(t, DefaultSummary, rec.Summary)
}

func TestTransform_ReadFailure(t *testing.T) {
	_, err := NewTransformer().Transform(filepath.Join(t.TempDir(), "gone.md"), "")

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeFileRead, docerrors.GetCode(err))
	assert.True(t, docerrors.IsFatal(err))
}

func TestStream_YieldsRecordsInOrder(t *testing.T) {
	// Given: a channel of two files
	root := t.TempDir()
	a := filepath.Join(root, "a.md")
	b := filepath.Join(root, "b.md")
	require.NoError(t, os.WriteFile(a, []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("B"), 0o644))

	files := make(chan walker.Result, 2)
	files <- walker.Result{Path: a}
	files <- walker.Result{Path: b}
	close(files)

	// When: consuming the sequence
	var urls []string
	for rec, err := range NewTransformer().Stream(context.Background(), files, root) {
		require.NoError(t, err)
		urls = append(urls, rec.URL)
	}

	// Then: records arrive in walk order
	assert.Equal(t, []string{"/a", "/b"}, urls)
}

func TestStream_StopsAtWalkError(t *testing.T) {
	// Given: a walk error followed by a file
	files := make(chan walker.Result, 2)
	files <- walker.Result{Err: docerrors.New(docerrors.ErrCodeFileNotFound, "missing", nil)}
	files <- walker.Result{Path: "/never/read.md"}
	close(files)

	// When: consuming
	var errs []error
	count := 0
	for rec, err := range NewTransformer().Stream(context.Background(), files, "") {
		count++
		if err != nil {
			errs = append(errs, err)
			continue
		}
		assert.NotNil(t, rec)
	}

	// Then: the error is the only value
	assert.Equal(t, 1, count)
	require.Len(t, errs, 1)
	assert.Equal(t, docerrors.ErrCodeFileNotFound, docerrors.GetCode(errs[0]))
}

func TestStream_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := make(chan walker.Result)
	var got error
	for _, err := range NewTransformer().Stream(ctx, files, "") {
		got = err
	}

	assert.ErrorIs(t, got, context.Canceled)
}
