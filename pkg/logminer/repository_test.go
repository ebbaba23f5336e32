package logminer_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logminer/logminer-go/pkg/logminer"
)

func newStatement(t testing.TB, level logminer.Level, class, regex string) *logminer.LogStatement {
	t.Helper()
	stmt, err := logminer.NewLogStatement(level, class, regexp.MustCompile(regex))
	require.NoError(t, err)
	return stmt
}

func TestRepository_DefaultClassFallback(t *testing.T) {
	repo := logminer.NewRepository()
	repo.Add(newStatement(t, logminer.LevelInfo, logminer.DefaultClass, "a"))
	repo.Add(newStatement(t, logminer.LevelInfo, logminer.DefaultClass, "b"))

	got := repo.Get("SomethingUnrelated")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Pattern().String())
	assert.Equal(t, "b", got[1].Pattern().String())
}

func TestRepository_ClassBucketShadowsDefault(t *testing.T) {
	repo := logminer.NewRepository()
	repo.Add(newStatement(t, logminer.LevelInfo, logminer.DefaultClass, "default"))
	repo.Add(newStatement(t, logminer.LevelInfo, "Foo", "foo"))

	got := repo.Get("Foo")
	require.Len(t, got, 1)
	assert.Equal(t, "foo", got[0].Pattern().String())
}

func TestRepository_GetNeverNil(t *testing.T) {
	repo := logminer.NewRepository()
	got := repo.Get("Foo")
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, ok := repo.Lookup("Foo")
	assert.False(t, ok)
}

func TestRepository_InsertionOrder(t *testing.T) {
	repo := logminer.NewRepository()
	repo.Add(newStatement(t, logminer.LevelInfo, "B", "b1"))
	repo.Add(newStatement(t, logminer.LevelInfo, "A", "a1"))
	repo.Add(newStatement(t, logminer.LevelInfo, "B", "b2"))
	repo.Add(nil)

	assert.Equal(t, 3, repo.Len())
	assert.Equal(t, []string{"B", "A"}, repo.Classes())

	var order []string
	for stmt := range repo.All() {
		order = append(order, stmt.Pattern().String())
	}
	assert.Equal(t, []string{"b1", "b2", "a1"}, order)
	assert.Len(t, repo.Statements(), 3)
}

func TestRepository_AllStopsEarly(t *testing.T) {
	repo := logminer.NewRepository()
	repo.Add(newStatement(t, logminer.LevelInfo, "A", "a1"))
	repo.Add(newStatement(t, logminer.LevelInfo, "A", "a2"))

	n := 0
	for range repo.All() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestNewLogStatement(t *testing.T) {
	stmt, err := logminer.NewLogStatement(logminer.LevelWarn, "", regexp.MustCompile(`x ([\w]+)`))
	require.NoError(t, err)
	assert.Equal(t, logminer.DefaultClass, stmt.Class())
	assert.Equal(t, logminer.LevelWarn, stmt.Level())
	assert.Equal(t, `warn|Default-Class|x ([\w]+)`, stmt.String())

	_, err = logminer.NewLogStatement(logminer.LevelWarn, "Foo", nil)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, ok := logminer.ParseLevel(" INFO ")
	assert.True(t, ok)
	assert.Equal(t, logminer.LevelInfo, l)

	l, ok = logminer.ParseLevel("Fatal")
	assert.False(t, ok)
	assert.Equal(t, logminer.Level("fatal"), l)
}
