package artifact

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcfgather/server/internal/model"
	"github.com/vcfgather/server/internal/repo"
)

func seed(t *testing.T, name string, contacts ...model.Participant) (*repo.MemoryStore, model.Session) {
	t.Helper()
	ctx := context.Background()
	store := repo.NewMemoryStore(nil, nil)
	s, err := store.Create(ctx, model.Session{Name: name, CreatorID: uuid.New(), DurationMinutes: 5})
	require.NoError(t, err)
	for _, c := range contacts {
		c.SessionID = s.ID
		_, err := store.Insert(ctx, c)
		require.NoError(t, err)
	}
	return store, s
}

func TestCompile_SingleContact(t *testing.T) {
	store, s := seed(t, "Book Club", model.Participant{Name: "Jane Doe", Phone: "+15551234567"})
	c := NewCompiler(store, store, nil, nil)

	f, err := c.Compile(context.Background(), s.ID)
	require.NoError(t, err)

	want := "BEGIN:VCARD\nVERSION:3.0\nFN:Jane Doe\nTEL;TYPE=CELL:+15551234567\nEND:VCARD\n"
	assert.Equal(t, want, f.Content)
	assert.Equal(t, 1, f.Count)
	assert.Equal(t, "Group_Book_Club_Contacts.vcf", f.Filename)
}

func TestWriteVCard_KeepsValuesOnOneLine(t *testing.T) {
	var b strings.Builder
	WriteVCard(&b, model.Participant{
		Name:  "Eve\nEND:VCARD\nBEGIN:VCARD\nFN:Injected",
		Phone: "+1555\r\n1234",
	})

	out := b.String()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "BEGIN:VCARD", lines[0])
	assert.Equal(t, "FN:Eve END:VCARD BEGIN:VCARD FN:Injected", lines[2])
	assert.Equal(t, "TEL;TYPE=CELL:+1555  1234", lines[3])
	assert.Equal(t, "END:VCARD", lines[4])
}

func TestCompile_EmptySet(t *testing.T) {
	store, s := seed(t, "Empty")
	c := NewCompiler(store, store, nil, nil)

	sink := &memorySink{}
	_, err := c.Export(context.Background(), s.ID, sink)
	assert.ErrorIs(t, err, model.ErrEmptySet)
	assert.Empty(t, sink.files, "no file is produced")
}

func TestCompile_Deterministic(t *testing.T) {
	store, s := seed(t, "Team",
		model.Participant{Name: "Jane Doe", Phone: "+15551234567"},
		model.Participant{Name: "John Roe", Phone: "+447700900123"},
	)
	c := NewCompiler(store, store, nil, nil)

	first, err := c.Compile(context.Background(), s.ID)
	require.NoError(t, err)
	second, err := c.Compile(context.Background(), s.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, strings.Count(first.Content, "BEGIN:VCARD\n"))
}

func TestCompile_AlwaysRefetches(t *testing.T) {
	store, s := seed(t, "Team", model.Participant{Name: "Jane Doe", Phone: "+15551234567"})
	c := NewCompiler(store, store, nil, nil)

	_, err := c.Compile(context.Background(), s.ID)
	require.NoError(t, err)

	_, err = store.Insert(context.Background(), model.Participant{SessionID: s.ID, Name: "Late Comer", Phone: "+15550000000"})
	require.NoError(t, err)

	f, err := c.Compile(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Count)
	assert.Contains(t, f.Content, "FN:Late Comer\n")
}

type brokenFetcher struct{}

func (brokenFetcher) ListBySession(context.Context, uuid.UUID) ([]model.Participant, error) {
	return nil, errors.New("connection reset by peer")
}

func TestCompile_FetchFailure(t *testing.T) {
	store, s := seed(t, "Team", model.Participant{Name: "Jane Doe", Phone: "+15551234567"})
	c := NewCompiler(store, brokenFetcher{}, nil, nil)

	_, err := c.Compile(context.Background(), s.ID)
	assert.ErrorIs(t, err, model.ErrFetchFailure)
}

func TestCompile_UnknownSession(t *testing.T) {
	store, _ := seed(t, "Team")
	c := NewCompiler(store, store, nil, nil)

	_, err := c.Compile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestFilename(t *testing.T) {
	cases := map[string]string{
		"Book Club":      "Group_Book_Club_Contacts.vcf",
		"":               "Group_Contact_Contacts.vcf",
		"a/b\\c":         "Group_a_b_c_Contacts.vcf",
		"Café 2026!":     "Group_Caf__2026__Contacts.vcf",
		"UPPER lower 09": "Group_UPPER_lower_09_Contacts.vcf",
	}
	for in, want := range cases {
		assert.Equal(t, want, Filename(in), in)
	}
}

type memorySink struct {
	files map[string][]byte
}

func (s *memorySink) Deliver(_ context.Context, filename string, content []byte) error {
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	s.files[filename] = content
	return nil
}

func TestExport_DiskSink(t *testing.T) {
	store, s := seed(t, "Team", model.Participant{Name: "Jane Doe", Phone: "+15551234567"})
	c := NewCompiler(store, store, nil, nil)
	sink := DiskSink{Dir: t.TempDir()}

	f, err := c.Export(context.Background(), s.ID, sink)
	require.NoError(t, err)

	data, err := os.ReadFile(sink.Path(f.Filename))
	require.NoError(t, err)
	assert.Equal(t, f.Content, string(data))
}
