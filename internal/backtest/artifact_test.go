package backtest

import (
	"context"
	"errors"
	"testing"

	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifact_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatParquet} {
		t.Run(string(format), func(t *testing.T) {
			store := newLocalStore(t.TempDir(), format)
			engine := newTestEngine(qqqProvider(), store)

			res, err := engine.Run(context.Background(), qqqRequest())
			require.NoError(t, err)
			assert.Contains(t, res.ArtifactPath, "."+string(format))

			rows, err := LoadArtifact(context.Background(), store.Storage(), res.ArtifactPath)
			require.NoError(t, err)
			require.Len(t, rows, len(res.Rows))

			for i := range rows {
				assert.Equal(t, res.Rows[i].Date, rows[i].Date)
				assert.Equal(t, res.Rows[i].Signal, rows[i].Signal)
				assert.True(t, res.Rows[i].Shares.Equal(rows[i].Shares), "row %d shares", i)
				assert.True(t, res.Rows[i].Value.Equal(rows[i].Value), "row %d value", i)
			}

			sum := Summarize(rows)
			assert.True(t, sum.Balance.Equal(res.Balance), "balance %s != %s", sum.Balance, res.Balance)
			assert.True(t, sum.Rate.Equal(res.Rate), "rate %s != %s", sum.Rate, res.Rate)
			assert.True(t, sum.Invested.Equal(res.Invested))
			assert.Equal(t, res.LastSignal, sum.LastSignal)
			assert.Equal(t, res.MinDataDate, sum.Start)
		})
	}
}

func TestArtifactStore_List(t *testing.T) {
	dir := t.TempDir()
	store := newLocalStore(dir, FormatCSV)
	ctx := context.Background()

	_, err := store.Save(ctx, "B", []Row{{Date: day("2022-01-03"), Signal: core.ActionHold}})
	require.NoError(t, err)
	_, err = store.Save(ctx, "A", []Row{{Date: day("2022-01-03"), Signal: core.ActionHold}})
	require.NoError(t, err)
	require.NoError(t, store.Storage().Write(ctx, "results/notes.txt", []byte("x")))

	paths, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"results/A.csv", "results/B.csv"}, paths)
}

func TestLoadArtifact_Errors(t *testing.T) {
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = LoadArtifact(ctx, fs, "missing.csv")
	assert.True(t, errors.Is(err, core.ErrArtifactNotFound))

	_, err = LoadArtifact(ctx, fs, "chart.png")
	assert.True(t, errors.Is(err, core.ErrArtifactFailed))

	require.NoError(t, fs.Write(ctx, "bad.csv", []byte("a,b\n1,2\n")))
	_, err = LoadArtifact(ctx, fs, "bad.csv")
	assert.True(t, errors.Is(err, core.ErrArtifactFailed))
}

func TestEncodeRows_CSVLayout(t *testing.T) {
	rows := []Row{{
		Date:         day("2022-01-03"),
		Price:        money(400),
		Signal:       core.ActionSell,
		Contribution: money(1000),
		Shares:       money(2),
		Cash:         money(200),
		Value:        money(1000),
	}}

	data, err := EncodeRows(FormatCSV, rows)
	require.NoError(t, err)
	assert.Equal(t, "date,price,signal,contribution,shares,cash,value\n2022-01-03,400,SELL,1000,2,200,1000\n", string(data))

	_, err = EncodeRows("xlsx", rows)
	assert.Error(t, err)
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil)
	assert.True(t, sum.Balance.IsZero())
	assert.True(t, sum.Rate.IsZero())
}
