package knowledge

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "kb", "knowledge_base.json")
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, slog.Default())
	require.NoError(t, err)
	return s
}

// ---------------------------------------------------------------------------
// Open
// ---------------------------------------------------------------------------

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(" ", slog.Default())
	require.Error(t, err)
}

func TestOpen_SeedsMissingFile(t *testing.T) {
	path := testPath(t)
	s := openTestStore(t, path)

	require.FileExists(t, path)
	require.Equal(t, 1, s.Len())

	answer, confidence := s.FindAnswer("Пример вопроса 1")
	require.Equal(t, "Пример ответа", answer)
	require.Equal(t, 1.0, confidence)
}

func TestOpen_MalformedFileDegradesToEmpty(t *testing.T) {
	path := testPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"Ответ": broken`), 0o644))

	s := openTestStore(t, path)
	require.Equal(t, 0, s.Len())
}

func TestOpen_NonObjectDocumentDegradesToEmpty(t *testing.T) {
	path := testPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`["not","an","object"]`), 0o644))

	s := openTestStore(t, path)
	require.Equal(t, 0, s.Len())
}

// ---------------------------------------------------------------------------
// FindAnswer
// ---------------------------------------------------------------------------

func TestFindAnswer_CaseAndWhitespaceInsensitive(t *testing.T) {
	s := openTestStore(t, testPath(t))
	require.NoError(t, s.Add("Как работает анализ?", "Анализ использует NLP."))

	for _, q := range []string{
		"Как работает анализ?",
		"как работает анализ?",
		"КАК РАБОТАЕТ АНАЛИЗ?",
		"  Как работает анализ?  ",
	} {
		answer, confidence := s.FindAnswer(q)
		require.Equal(t, "Анализ использует NLP.", answer, "q=%q", q)
		require.Equal(t, 1.0, confidence, "q=%q", q)
	}
}

func TestFindAnswer_Miss(t *testing.T) {
	s := openTestStore(t, testPath(t))
	answer, confidence := s.FindAnswer("Что такое квантовая физика?")
	require.Empty(t, answer)
	require.Equal(t, 0.0, confidence)
}

func TestFindAnswer_FirstInsertedAnswerWins(t *testing.T) {
	s := openTestStore(t, testPath(t))
	require.NoError(t, s.Add("Общий вопрос", "Первый ответ"))
	require.NoError(t, s.Add("Общий вопрос", "Второй ответ"))

	answer, _ := s.FindAnswer("общий вопрос")
	require.Equal(t, "Первый ответ", answer)
}

// ---------------------------------------------------------------------------
// Add
// ---------------------------------------------------------------------------

func TestAdd_Idempotent(t *testing.T) {
	s := openTestStore(t, testPath(t))
	require.NoError(t, s.Add("Вопрос", "Ответ"))
	before := s.Dump()

	require.NoError(t, s.Add("Вопрос", "Ответ"))
	require.Equal(t, before, s.Dump())
}

func TestAdd_AppendsParaphrase(t *testing.T) {
	s := openTestStore(t, testPath(t))
	require.NoError(t, s.Add("Первая формулировка", "Ответ"))
	require.NoError(t, s.Add("Вторая формулировка", "Ответ"))

	entries := s.Dump()
	require.Len(t, entries, 2) // seed entry plus ours
	require.Equal(t, []string{"Первая формулировка", "Вторая формулировка"}, entries[1].Questions)
}

func TestAdd_DuplicateCheckIsCaseSensitive(t *testing.T) {
	s := openTestStore(t, testPath(t))
	require.NoError(t, s.Add("Вопрос", "Ответ"))
	// Lookup folds case but the add-path duplicate check does not.
	require.NoError(t, s.Add("вопрос", "Ответ"))

	entries := s.Dump()
	require.Equal(t, []string{"Вопрос", "вопрос"}, entries[1].Questions)
}

func TestAdd_EmptyInputsAreNoOps(t *testing.T) {
	s := openTestStore(t, testPath(t))
	before := s.Dump()

	require.NoError(t, s.Add("  ", "Ответ"))
	require.NoError(t, s.Add("Вопрос", "  "))
	require.Equal(t, before, s.Dump())
}

func TestAdd_TrimsBothSides(t *testing.T) {
	s := openTestStore(t, testPath(t))
	require.NoError(t, s.Add("  Вопрос  ", "  Ответ  "))

	answer, confidence := s.FindAnswer("вопрос")
	require.Equal(t, "Ответ", answer)
	require.Equal(t, 1.0, confidence)
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

func TestRoundTrip_ReloadReproducesStore(t *testing.T) {
	path := testPath(t)
	s := openTestStore(t, path)
	require.NoError(t, s.Add("Как работает анализ?", "Анализ использует NLP."))
	require.NoError(t, s.Add("Что умеет анализ?", "Анализ использует NLP."))
	require.NoError(t, s.Add("Какие есть риски?", "Риски делятся на категории."))

	reloaded := openTestStore(t, path)
	require.Equal(t, s.Dump(), reloaded.Dump())
}

func TestFlush_KeepsCyrillicReadable(t *testing.T) {
	path := testPath(t)
	s := openTestStore(t, path)
	require.NoError(t, s.Add("Как работает анализ?", "Анализ использует NLP."))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "Как работает анализ?")
	require.NotContains(t, string(raw), `\u0`)
}

func TestFlush_PreservesInsertionOrder(t *testing.T) {
	path := testPath(t)
	s := openTestStore(t, path)
	require.NoError(t, s.Add("q", "Яблоко"))
	require.NoError(t, s.Add("q", "Арбуз"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	require.Less(t, strings.Index(text, "Яблоко"), strings.Index(text, "Арбуз"),
		"answers must be written in insertion order, not sorted")
}

func TestDump_IsDefensiveCopy(t *testing.T) {
	s := openTestStore(t, testPath(t))
	entries := s.Dump()
	entries[0].Questions[0] = "mutated"

	fresh := s.Dump()
	require.Equal(t, "Пример вопроса 1", fresh[0].Questions[0])
}

// ---------------------------------------------------------------------------
// Render
// ---------------------------------------------------------------------------

func TestRender_FormatsEntries(t *testing.T) {
	out := Render([]Entry{
		{Answer: "Ответ один", Questions: []string{"в1", "в2"}},
		{Answer: "Ответ два", Questions: []string{"в3"}},
	}, 4000)
	require.Contains(t, out, "Содержимое базы знаний:")
	require.Contains(t, out, "Ответ: Ответ один")
	require.Contains(t, out, "Вопросы: в1, в2")
	require.Contains(t, out, "Ответ: Ответ два")
}

func TestRender_TruncatesToLimit(t *testing.T) {
	long := strings.Repeat("оченьдлинныйответ ", 500)
	out := Render([]Entry{{Answer: long, Questions: []string{"в"}}}, 4000)
	require.Equal(t, 4000, len([]rune(out)))
}
