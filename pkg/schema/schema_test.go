package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lancelabs/lancelake/pkg/dataset"
)

const fixtureCSV = `freelancer_id,region,expertise_level,earnings,projects_completed,accepts_crypto
1,Asia,expert,50000.5,120,true
2,Europe,beginner,20000,10,false
3,Asia,intermediate,35000,45,true
4,North America,expert,60000,80,false
`

func loadFixture(t *testing.T, content string) *dataset.Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "freelancers.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := dataset.Load(context.Background(), dataset.Config{CSVPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestLake_Schema_Describe_Kinds(t *testing.T) {
	t.Parallel()
	ds := loadFixture(t, fixtureCSV)

	desc, err := Describe(context.Background(), ds, Options{})
	require.NoError(t, err)
	require.Equal(t, dataset.DefaultTable, desc.Table)

	require.Equal(t, KindNumeric, desc.Column("freelancer_id").Kind)
	require.Equal(t, KindNumeric, desc.Column("earnings").Kind)
	require.Equal(t, KindNumeric, desc.Column("projects_completed").Kind)
	require.Equal(t, KindBoolean, desc.Column("accepts_crypto").Kind)
	require.Equal(t, KindCategorical, desc.Column("region").Kind)
	require.Equal(t, KindCategorical, desc.Column("expertise_level").Kind)

	require.Nil(t, desc.Column("shoe_size"))
}

func TestLake_Schema_Describe_CategoricalValues(t *testing.T) {
	t.Parallel()
	ds := loadFixture(t, fixtureCSV)

	desc, err := Describe(context.Background(), ds, Options{})
	require.NoError(t, err)

	region := desc.Column("region")
	require.False(t, region.Truncated)
	// Most frequent first, ties broken by value.
	require.Equal(t, []string{"Asia", "Europe", "North America"}, region.Values)
}

func TestLake_Schema_Describe_Truncation(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("id,category\n")
	// "common" appears 10 times, the rest once each.
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "%d,common\n", i)
	}
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, "%d,rare_%d\n", 100+i, i)
	}
	ds := loadFixture(t, sb.String())

	desc, err := Describe(context.Background(), ds, Options{MaxValues: 5, TopN: 3, TextThreshold: 50})
	require.NoError(t, err)

	category := desc.Column("category")
	require.Equal(t, KindCategorical, category.Kind)
	require.True(t, category.Truncated)
	require.Len(t, category.Values, 3)
	require.Equal(t, "common", category.Values[0])
}

func TestLake_Schema_Describe_TextThreshold(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("id,bio\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "%d,unique bio text %d\n", i, i)
	}
	ds := loadFixture(t, sb.String())

	desc, err := Describe(context.Background(), ds, Options{MaxValues: 5, TopN: 3, TextThreshold: 10})
	require.NoError(t, err)

	bio := desc.Column("bio")
	require.Equal(t, KindText, bio.Kind)
	require.Empty(t, bio.Values)
}

func TestLake_Schema_Describe_Deterministic(t *testing.T) {
	t.Parallel()
	ds := loadFixture(t, fixtureCSV)
	ctx := context.Background()

	first, err := Describe(ctx, ds, Options{})
	require.NoError(t, err)
	second, err := Describe(ctx, ds, Options{})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLake_Schema_Render(t *testing.T) {
	t.Parallel()
	ds := loadFixture(t, fixtureCSV)

	desc, err := Describe(context.Background(), ds, Options{})
	require.NoError(t, err)

	rendered := desc.Render()
	require.Contains(t, rendered, "freelancers:")
	require.Contains(t, rendered, "earnings (numeric)")
	require.Contains(t, rendered, "accepts_crypto (boolean)")
	require.Contains(t, rendered, "region (categorical) values: Asia, Europe, North America")
}
