package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/expense-insights/internal/domain"
	"github.com/dvloznov/expense-insights/internal/gcsuploader"
	"github.com/dvloznov/expense-insights/internal/infra/bigquery"
)

// ErrWarehouseCurrent is returned when a warehouse table is offered as
// current-period data. Warehouse tables are read for history only.
var ErrWarehouseCurrent = errors.New("warehouse tables can only be used as history")

// ErrNoBackend is returned when a URI needs a cloud client that was not configured.
var ErrNoBackend = errors.New("no client configured for source")

// ObjectStore reads and writes whole objects.
type ObjectStore interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
	Upload(ctx context.Context, uri string, data []byte, contentType string) error
}

// Warehouse reads tables as text cells, header first.
type Warehouse interface {
	ReadTable(ctx context.Context, ref bigquery.TableRef) ([][]string, error)
}

// Loader resolves input locations into uploads. Local paths are always
// supported; gs:// and bq:// need the matching client.
type Loader struct {
	Objects   ObjectStore
	Warehouse Warehouse
}

// LoadCurrent loads one current-period input.
func (l *Loader) LoadCurrent(ctx context.Context, location string) (domain.Upload, error) {
	if bigquery.IsURI(location) {
		return domain.Upload{}, fmt.Errorf("LoadCurrent: %s: %w", location, ErrWarehouseCurrent)
	}
	return l.load(ctx, location)
}

// LoadHistory loads one historical input.
func (l *Loader) LoadHistory(ctx context.Context, location string) (domain.Upload, error) {
	return l.load(ctx, location)
}

// LoadAll loads several locations with the given load function, stopping at
// the first failure.
func LoadAll(ctx context.Context, locations []string, load func(context.Context, string) (domain.Upload, error)) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, 0, len(locations))
	for _, loc := range locations {
		u, err := load(ctx, loc)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func (l *Loader) load(ctx context.Context, location string) (domain.Upload, error) {
	switch {
	case gcsuploader.IsURI(location):
		if l.Objects == nil {
			return domain.Upload{}, fmt.Errorf("load %s: %w", location, ErrNoBackend)
		}
		data, err := l.Objects.Fetch(ctx, location)
		if err != nil {
			return domain.Upload{}, &domain.RemoteServiceError{Op: "FetchObject", Err: err}
		}
		return domain.Upload{Name: gcsuploader.ExtractFilename(location), Data: data}, nil

	case bigquery.IsURI(location):
		if l.Warehouse == nil {
			return domain.Upload{}, fmt.Errorf("load %s: %w", location, ErrNoBackend)
		}
		ref, err := bigquery.ParseTableURI(location)
		if err != nil {
			return domain.Upload{}, err
		}
		rows, err := l.Warehouse.ReadTable(ctx, ref)
		if err != nil {
			return domain.Upload{}, &domain.RemoteServiceError{Op: "ReadTable", Err: err}
		}
		return domain.Upload{Name: location, Rows: rows}, nil

	default:
		data, err := os.ReadFile(location)
		if err != nil {
			return domain.Upload{}, fmt.Errorf("load %s: %w", location, err)
		}
		return domain.Upload{Name: filepath.Base(location), Data: data}, nil
	}
}

// Export writes a finished report to the object store under the bucket.
// It returns the gs:// URI written.
func (l *Loader) Export(ctx context.Context, bucket, name string, data []byte) (string, error) {
	if l.Objects == nil {
		return "", fmt.Errorf("Export %s: %w", name, ErrNoBackend)
	}
	uri := gcsuploader.BuildURI(bucket, name)
	if err := l.Objects.Upload(ctx, uri, data, "text/markdown; charset=utf-8"); err != nil {
		return "", &domain.RemoteServiceError{Op: "UploadReport", Err: err}
	}
	return uri, nil
}
