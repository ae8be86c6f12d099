package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const uriScheme = "bq://"

// maxNameLen is the longest dataset or table name BigQuery accepts.
const maxNameLen = 1024

var (
	projectPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{4,28}[a-z0-9]$`)
	namePattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

func validName(name string) bool {
	return len(name) <= maxNameLen && namePattern.MatchString(name)
}

// TableRef identifies a BigQuery table holding expense rows.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// String renders the reference as a bq:// URI.
func (r TableRef) String() string {
	return fmt.Sprintf("%s%s.%s.%s", uriScheme, r.Project, r.Dataset, r.Table)
}

// quoted returns the fully qualified, backtick-quoted table name for SQL.
func (r TableRef) quoted() string {
	return fmt.Sprintf("`%s.%s.%s`", r.Project, r.Dataset, r.Table)
}

// IsURI reports whether s names a BigQuery table.
func IsURI(s string) bool {
	return strings.HasPrefix(s, uriScheme)
}

// ParseTableURI parses bq://project.dataset.table. Identifiers are validated
// because they are interpolated into the query text.
func ParseTableURI(uri string) (TableRef, error) {
	if !IsURI(uri) {
		return TableRef{}, fmt.Errorf("invalid BigQuery URI: %s", uri)
	}
	parts := strings.Split(strings.TrimPrefix(uri, uriScheme), ".")
	if len(parts) != 3 {
		return TableRef{}, fmt.Errorf("invalid BigQuery URI (want project.dataset.table): %s", uri)
	}
	ref := TableRef{Project: parts[0], Dataset: parts[1], Table: parts[2]}
	if !projectPattern.MatchString(ref.Project) {
		return TableRef{}, fmt.Errorf("invalid BigQuery project %q", ref.Project)
	}
	if !validName(ref.Dataset) {
		return TableRef{}, fmt.Errorf("invalid BigQuery dataset %q", ref.Dataset)
	}
	if !validName(ref.Table) {
		return TableRef{}, fmt.Errorf("invalid BigQuery table %q", ref.Table)
	}
	return ref, nil
}

// Reader loads historical expense tables from BigQuery.
// It holds a shared client so repeated reads reuse one connection.
type Reader struct {
	client *bigquery.Client
}

// NewReader creates a Reader billed to the given project.
func NewReader(ctx context.Context, projectID string, opts ...option.ClientOption) (*Reader, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewReader: creating client: %w", err)
	}
	return &Reader{client: client}, nil
}

// Close closes the BigQuery client connection.
func (r *Reader) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ReadTable returns every row of the table as text cells, header first.
// Column names come from the result schema.
func (r *Reader) ReadTable(ctx context.Context, ref TableRef) ([][]string, error) {
	q := r.client.Query("SELECT * FROM " + ref.quoted())

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadTable: query read: %w", err)
	}

	var rows [][]string
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadTable: iter next: %w", err)
		}
		if rows == nil {
			rows = append(rows, header(it.Schema))
		}
		rows = append(rows, formatRow(values))
	}

	if rows == nil {
		// Schema is populated once the first page is fetched, even when empty.
		rows = append(rows, header(it.Schema))
	}
	return rows, nil
}

func header(schema bigquery.Schema) []string {
	out := make([]string, len(schema))
	for i, f := range schema {
		out[i] = f.Name
	}
	return out
}

func formatRow(values []bigquery.Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = formatValue(v)
	}
	return out
}

// formatValue renders a warehouse cell the way it would appear in an
// exported CSV, so the file parser can coerce it.
func formatValue(v bigquery.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case civil.Date:
		return x.String()
	case civil.DateTime:
		return x.Date.String()
	case time.Time:
		return x.Format("2006-01-02")
	case *big.Rat:
		if x == nil {
			return ""
		}
		if x.IsInt() {
			return x.Num().String()
		}
		return x.FloatString(9)
	default:
		return fmt.Sprint(x)
	}
}
