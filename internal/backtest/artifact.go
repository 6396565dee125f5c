package backtest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/storage/archive"
	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"
)

// Format selects the artifact file encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

var artifactHeader = []string{"date", "price", "signal", "contribution", "shares", "cash", "value"}

// ArtifactStore persists per-day result tables.
type ArtifactStore struct {
	storage archive.Storage
	format  Format
	dir     string
}

// NewArtifactStore writes artifacts under dir in storage.
func NewArtifactStore(storage archive.Storage, format Format, dir string) *ArtifactStore {
	if format == "" {
		format = FormatCSV
	}
	return &ArtifactStore{
		storage: storage,
		format:  format,
		dir:     strings.Trim(dir, "/"),
	}
}

// Storage returns the underlying object store.
func (s *ArtifactStore) Storage() archive.Storage {
	return s.storage
}

// Save encodes rows and writes them as name plus the format's extension.
func (s *ArtifactStore) Save(ctx context.Context, name string, rows []Row) (string, error) {
	data, err := EncodeRows(s.format, rows)
	if err != nil {
		return "", core.WrapError(core.ErrArtifactFailed, err)
	}

	p := name + "." + string(s.format)
	if s.dir != "" {
		p = path.Join(s.dir, p)
	}
	if err := s.storage.Write(ctx, p, data); err != nil {
		return "", core.WrapError(core.ErrArtifactFailed, fmt.Errorf("writing %s: %w", p, err))
	}
	return p, nil
}

// List returns stored artifact paths.
func (s *ArtifactStore) List(ctx context.Context) ([]string, error) {
	paths, err := s.storage.List(ctx, s.dir)
	if err != nil {
		return nil, core.WrapError(core.ErrArtifactFailed, err)
	}
	out := paths[:0]
	for _, p := range paths {
		if _, ok := formatOf(p); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Load reads an artifact back into rows.
func (s *ArtifactStore) Load(ctx context.Context, p string) ([]Row, error) {
	return LoadArtifact(ctx, s.storage, p)
}

// LoadArtifact reads the artifact at p, choosing the decoder by extension.
func LoadArtifact(ctx context.Context, storage archive.Storage, p string) ([]Row, error) {
	format, ok := formatOf(p)
	if !ok {
		return nil, core.Errorf(core.ErrArtifactFailed, "unknown artifact format: %s", p)
	}
	data, err := storage.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	rows, err := DecodeRows(format, data)
	if err != nil {
		return nil, core.WrapError(core.ErrArtifactFailed, fmt.Errorf("decoding %s: %w", p, err))
	}
	return rows, nil
}

func formatOf(p string) (Format, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".csv":
		return FormatCSV, true
	case ".parquet":
		return FormatParquet, true
	}
	return "", false
}

// Summary is what a reloaded artifact says about its run.
type Summary struct {
	Start      time.Time
	End        time.Time
	Periods    int
	Balance    decimal.Decimal
	Invested   decimal.Decimal
	Rate       decimal.Decimal
	LastSignal core.Action
}

// Summarize recomputes the headline figures from rows.
func Summarize(rows []Row) Summary {
	if len(rows) == 0 {
		return Summary{Balance: decimal.Zero, Invested: decimal.Zero, Rate: decimal.Zero}
	}
	invested := decimal.Zero
	for _, r := range rows {
		invested = invested.Add(r.Contribution)
	}
	last := rows[len(rows)-1]
	return Summary{
		Start:      rows[0].Date,
		End:        last.Date,
		Periods:    len(rows),
		Balance:    last.Value,
		Invested:   invested,
		Rate:       ReturnRate(last.Value, invested),
		LastSignal: last.Signal,
	}
}

// EncodeRows serializes rows. Decimals are written in full so a reload is exact.
func EncodeRows(format Format, rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		w := csv.NewWriter(&buf)
		if err := w.Write(artifactHeader); err != nil {
			return nil, err
		}
		for _, r := range rows {
			record := []string{
				r.Date.Format(time.DateOnly),
				r.Price.String(),
				r.Signal.Label(),
				r.Contribution.String(),
				r.Shares.String(),
				r.Cash.String(),
				r.Value.String(),
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	case FormatParquet:
		records := make([]parquetRow, len(rows))
		for i, r := range rows {
			records[i] = parquetRow{
				Date:         r.Date.Format(time.DateOnly),
				Price:        r.Price.String(),
				Signal:       r.Signal.Label(),
				Contribution: r.Contribution.String(),
				Shares:       r.Shares.String(),
				Cash:         r.Cash.String(),
				Value:        r.Value.String(),
			}
		}
		if err := parquet.Write(&buf, records); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported artifact format %q", format)
	}
	return buf.Bytes(), nil
}

// parquetRow stores decimals as strings to keep them exact.
type parquetRow struct {
	Date         string `parquet:"date"`
	Price        string `parquet:"price"`
	Signal       string `parquet:"signal"`
	Contribution string `parquet:"contribution"`
	Shares       string `parquet:"shares"`
	Cash         string `parquet:"cash"`
	Value        string `parquet:"value"`
}

// DecodeRows parses an encoded artifact.
func DecodeRows(format Format, data []byte) ([]Row, error) {
	var records [][]string
	switch format {
	case FormatCSV:
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = len(artifactHeader)
		header, err := r.Read()
		if err == io.EOF {
			return nil, fmt.Errorf("empty artifact")
		}
		if err != nil {
			return nil, err
		}
		if strings.Join(header, ",") != strings.Join(artifactHeader, ",") {
			return nil, fmt.Errorf("unexpected header %v", header)
		}
		records, err = r.ReadAll()
		if err != nil {
			return nil, err
		}
	case FormatParquet:
		prs, err := parquet.Read[parquetRow](bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, err
		}
		records = make([][]string, len(prs))
		for i, pr := range prs {
			records[i] = []string{pr.Date, pr.Price, pr.Signal, pr.Contribution, pr.Shares, pr.Cash, pr.Value}
		}
	default:
		return nil, fmt.Errorf("unsupported artifact format %q", format)
	}

	rows := make([]Row, len(records))
	for i, rec := range records {
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		rows[i] = row
	}
	return rows, nil
}

func parseRecord(rec []string) (Row, error) {
	date, err := time.Parse(time.DateOnly, rec[0])
	if err != nil {
		return Row{}, err
	}
	signal, ok := core.ParseAction(rec[2])
	if !ok {
		return Row{}, fmt.Errorf("unknown signal %q", rec[2])
	}

	var nums [5]decimal.Decimal
	for j, idx := range []int{1, 3, 4, 5, 6} {
		d, err := decimal.NewFromString(rec[idx])
		if err != nil {
			return Row{}, fmt.Errorf("%s: %w", artifactHeader[idx], err)
		}
		nums[j] = d
	}

	return Row{
		Date:         date,
		Price:        nums[0],
		Signal:       signal,
		Contribution: nums[1],
		Shares:       nums[2],
		Cash:         nums[3],
		Value:        nums[4],
	}, nil
}
