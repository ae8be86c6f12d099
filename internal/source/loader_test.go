package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-insights/internal/domain"
	"github.com/dvloznov/expense-insights/internal/infra/bigquery"
)

type mockObjects struct {
	FetchFunc  func(ctx context.Context, uri string) ([]byte, error)
	UploadFunc func(ctx context.Context, uri string, data []byte, contentType string) error
}

func (m *mockObjects) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return m.FetchFunc(ctx, uri)
}

func (m *mockObjects) Upload(ctx context.Context, uri string, data []byte, contentType string) error {
	return m.UploadFunc(ctx, uri, data, contentType)
}

type mockWarehouse struct {
	ReadTableFunc func(ctx context.Context, ref bigquery.TableRef) ([][]string, error)
}

func (m *mockWarehouse) ReadTable(ctx context.Context, ref bigquery.TableRef) ([][]string, error) {
	return m.ReadTableFunc(ctx, ref)
}

func TestLoader_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "may.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,amount,category\n"), 0o644))

	l := &Loader{}
	u, err := l.LoadCurrent(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "may.csv", u.Name)
	assert.Equal(t, "date,amount,category\n", string(u.Data))

	_, err = l.LoadCurrent(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_ObjectStore(t *testing.T) {
	objects := &mockObjects{
		FetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
			if uri == "gs://bucket/2024/may.xlsx" {
				return []byte("xlsx-bytes"), nil
			}
			return nil, errors.New("object not found")
		},
	}
	l := &Loader{Objects: objects}

	u, err := l.LoadHistory(context.Background(), "gs://bucket/2024/may.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "may.xlsx", u.Name)
	assert.Equal(t, []byte("xlsx-bytes"), u.Data)

	_, err = l.LoadHistory(context.Background(), "gs://bucket/other.csv")
	var remote *domain.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "FetchObject", remote.Op)
}

func TestLoader_Warehouse(t *testing.T) {
	var gotRef bigquery.TableRef
	wh := &mockWarehouse{
		ReadTableFunc: func(ctx context.Context, ref bigquery.TableRef) ([][]string, error) {
			gotRef = ref
			return [][]string{{"date", "amount", "category"}, {"2024-04-01", "1000", "식비"}}, nil
		},
	}
	l := &Loader{Warehouse: wh}

	u, err := l.LoadHistory(context.Background(), "bq://my-project.finance.expenses")
	require.NoError(t, err)
	assert.Equal(t, "finance", gotRef.Dataset)
	assert.Equal(t, "bq://my-project.finance.expenses", u.Name)
	assert.Len(t, u.Rows, 2)

	_, err = l.LoadCurrent(context.Background(), "bq://my-project.finance.expenses")
	assert.ErrorIs(t, err, ErrWarehouseCurrent)
}

func TestLoader_MissingBackend(t *testing.T) {
	l := &Loader{}
	_, err := l.LoadHistory(context.Background(), "gs://bucket/may.csv")
	assert.ErrorIs(t, err, ErrNoBackend)
	_, err = l.LoadHistory(context.Background(), "bq://my-project.finance.expenses")
	assert.ErrorIs(t, err, ErrNoBackend)
	_, err = l.Export(context.Background(), "reports", "r.md", nil)
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestLoader_Export(t *testing.T) {
	var gotURI, gotType string
	l := &Loader{Objects: &mockObjects{
		UploadFunc: func(ctx context.Context, uri string, data []byte, contentType string) error {
			gotURI, gotType = uri, contentType
			return nil
		},
	}}

	uri, err := l.Export(context.Background(), "reports", "monthly-report-20240531.md", []byte("# report"))
	require.NoError(t, err)
	assert.Equal(t, "gs://reports/monthly-report-20240531.md", uri)
	assert.Equal(t, gotURI, uri)
	assert.Contains(t, gotType, "text/markdown")
}

func TestLoadAll(t *testing.T) {
	l := &Loader{Objects: &mockObjects{
		FetchFunc: func(ctx context.Context, uri string) ([]byte, error) { return []byte(uri), nil },
	}}
	uploads, err := LoadAll(context.Background(), []string{"gs://b/a.csv", "gs://b/c.csv"}, l.LoadHistory)
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "c.csv", uploads[1].Name)

	_, err = LoadAll(context.Background(), []string{"gs://b/a.csv", "bq://bad"}, l.LoadHistory)
	assert.Error(t, err)
}
