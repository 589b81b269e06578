package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixtureCSV = `freelancer_id,region,expertise_level,earnings,projects_completed,accepts_crypto,skills
1,Asia,expert,50000,120,true,"web development, design"
2,Europe,beginner,20000,10,false,"writing"
3,Asia,intermediate,35000,45,true,"design, marketing"
4,North America,expert,60000,80,false,"web development"
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "freelancers.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLake_Dataset_Load(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ds, err := Load(ctx, Config{CSVPath: writeFixture(t, fixtureCSV)})
	require.NoError(t, err)
	defer ds.Close()

	require.Equal(t, DefaultTable, ds.Table())

	count, err := ds.RowCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, count)

	columns, err := ds.Columns(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{
		"freelancer_id", "region", "expertise_level", "earnings",
		"projects_completed", "accepts_crypto", "skills",
	}, names)
}

func TestLake_Dataset_Load_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), Config{CSVPath: filepath.Join(t.TempDir(), "nope.csv")})
	require.Error(t, err)
}

func TestLake_Dataset_Load_EmptyTable(t *testing.T) {
	t.Parallel()

	header := "freelancer_id,region,earnings\n"
	_, err := Load(context.Background(), Config{CSVPath: writeFixture(t, header)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestLake_Dataset_Load_MissingCSVPath(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), Config{})
	require.Error(t, err)
}

func TestLake_Dataset_Query_Parameterized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ds, err := Load(ctx, Config{CSVPath: writeFixture(t, fixtureCSV)})
	require.NoError(t, err)
	defer ds.Close()

	resp, err := ds.Query(ctx, `SELECT region, earnings FROM freelancers WHERE region = ? ORDER BY earnings`, "Asia")
	require.NoError(t, err)
	require.Equal(t, 2, resp.Count)
	require.Equal(t, []string{"region", "earnings"}, resp.Columns)
	require.Equal(t, "Asia", resp.Rows[0]["region"])

	// A hostile value stays a value; it matches nothing instead of
	// altering the query.
	resp, err = ds.Query(ctx, `SELECT * FROM freelancers WHERE region = ?`, `Asia" OR "1"="1`)
	require.NoError(t, err)
	require.Equal(t, 0, resp.Count)
}
