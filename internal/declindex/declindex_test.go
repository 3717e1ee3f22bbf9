package declindex

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cratedocs/internal/cratetypes"
)

func TestIndexCoversFixture(t *testing.T) {
	content, err := os.ReadFile("testdata/src.rs")
	require.NoError(t, err)

	idx := NewIndex()
	idx.Add("data/src.rs", content)

	cases := []struct {
		kind      cratetypes.ItemKind
		name      string
		start     int
		end       int
	}{
		{cratetypes.KindStruct, "ExampleStruct", 2, 5},
		{cratetypes.KindEnum, "ExampleEnum", 8, 12},
		{cratetypes.KindTrait, "ExampleTrait", 15, 18},
		{cratetypes.KindImplTraitForType, "impl ExampleTrait for ExampleStruct", 21, 26},
		{cratetypes.KindImplType, "impl ExampleStruct", 29, 34},
		{cratetypes.KindFunction, "example_function", 37, 40},
		{cratetypes.KindMacro, "example_macro", 43, 49},
		{cratetypes.KindAttributeMacro, "example_attribute_macro", 52, 58},
		{cratetypes.KindTypeAlias, "ExampleTypeAlias", 61, 62},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			items := idx.bucket(c.kind)[strings.ToLower(c.name)]
			require.Lenf(t, items, 1, "expected exactly one item for %s", c.name)
			it := items[0]
			require.Equal(t, c.name, it.Name)
			require.Equal(t, "data/src.rs", it.File)
			require.Equal(t, c.start, it.StartLine)
			require.Equal(t, c.end, it.EndLine)
		})
	}
}

func TestSearchAllMergesInFixedOrder(t *testing.T) {
	idx := NewIndex()
	idx.Add("data/src.rs", readFixture(t))

	results := idx.Search(cratetypes.ItemQuery{IsAll: true, Query: "example"})
	require.NotEmpty(t, results)

	// Every bucket contains at least one "example"-named item in the fixture,
	// so the fixed kind order should be observable in the merged output.
	var sawFunction, sawStructBeforeFunction bool
	structIdx, functionIdx := -1, -1
	for i, it := range results {
		if it.Kind == cratetypes.KindStruct && structIdx == -1 {
			structIdx = i
		}
		if it.Kind == cratetypes.KindFunction && functionIdx == -1 {
			functionIdx = i
			sawFunction = true
		}
	}
	if structIdx != -1 && functionIdx != -1 {
		sawStructBeforeFunction = structIdx < functionIdx
	}
	require.True(t, sawFunction)
	require.True(t, sawStructBeforeFunction)
}

func TestSearchPathPrefix(t *testing.T) {
	idx := NewIndex()
	idx.Add("src/lib.rs", readFixture(t))

	require.NotEmpty(t, idx.Search(cratetypes.ItemQuery{IsAll: true, Query: "example", Path: "src"}))
	require.Empty(t, idx.Search(cratetypes.ItemQuery{IsAll: true, Query: "example", Path: "other"}))
}

func readFixture(t *testing.T) []byte {
	t.Helper()
	content, err := os.ReadFile("testdata/src.rs")
	require.NoError(t, err)
	return content
}

