package surreal

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/surrealdb/surrealdb.go"
)

type Client struct {
	db *surrealdb.DB
}

// Config holds the connection settings for a SurrealDB instance.
type Config struct {
	Host      string
	User      string
	Pass      string
	Namespace string
	Database  string
}

// identifierRegex ensures that table names and fields only contain alphanumeric characters and underscores
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func validateIdentifier(s string) error {
	if !identifierRegex.MatchString(s) {
		return errors.Errorf("invalid identifier: %s", s)
	}
	return nil
}

// NormalizeHost turns a bare host into a websocket RPC endpoint.
func NormalizeHost(host string) string {
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	return "wss://" + host + "/rpc"
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	db, err := surrealdb.New(NormalizeHost(cfg.Host))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create surrealdb client")
	}

	if _, err = db.SignIn(ctx, map[string]interface{}{
		"user": cfg.User,
		"pass": cfg.Pass,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to signin to surrealdb")
	}

	if err = db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, errors.Wrap(err, "failed to use surrealdb namespace/database")
	}

	return &Client{db: db}, nil
}

func (c *Client) Close() {
	c.db.Close(context.Background())
}

// Query runs one or more statements and returns the result of the last one.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]interface{}) (interface{}, error) {
	if vars == nil {
		vars = map[string]interface{}{}
	}
	result, err := surrealdb.Query[interface{}](ctx, c.db, sql, vars)
	if err != nil {
		return nil, err
	}
	return unwrapResult(result), nil
}

// unwrapResult digs the Result field out of the driver's query response,
// which is either a single response struct or a slice of them.
func unwrapResult(result interface{}) interface{} {
	rv := reflect.ValueOf(result)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		if resField := rv.FieldByName("Result"); resField.IsValid() {
			return resField.Interface()
		}
	case reflect.Slice:
		if rv.Len() > 0 {
			lastElem := rv.Index(rv.Len() - 1)
			if lastElem.Kind() == reflect.Struct {
				if resField := lastElem.FieldByName("Result"); resField.IsValid() {
					return resField.Interface()
				}
			}
		}
	}
	return result
}

// Rows converts a query result into a slice of row maps, dropping anything
// that is not an object.
func Rows(result interface{}) []map[string]interface{} {
	items, ok := result.([]interface{})
	if !ok {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if row, ok := item.(map[string]interface{}); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// Put creates or replaces the record table:id with content.
func (c *Client) Put(ctx context.Context, table, id string, content map[string]interface{}) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPSERT type::thing("%s", $id) CONTENT $content;`, table)
	_, err := c.Query(ctx, query, map[string]interface{}{
		"id":      id,
		"content": content,
	})
	return err
}

// Get returns the record table:id, or nil when it does not exist.
func (c *Client) Get(ctx context.Context, table, id string) (map[string]interface{}, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT * FROM type::thing("%s", $id);`, table)
	result, err := c.Query(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	rows := Rows(result)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Delete removes the record table:id.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE type::thing("%s", $id);`, table)
	_, err := c.Query(ctx, query, map[string]interface{}{"id": id})
	return err
}

// SelectOptions narrows a SelectWhere query.
type SelectOptions struct {
	OrderBy    string
	Descending bool
	// Limit of 0 means no limit.
	Limit int
}

// SelectWhere returns the rows of table matching every field in filter.
func (c *Client) SelectWhere(ctx context.Context, table string, filter map[string]interface{}, opts SelectOptions) ([]map[string]interface{}, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}

	whereClause, err := buildWhereClause(filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s`, table, whereClause)
	if opts.OrderBy != "" {
		if err := validateIdentifier(opts.OrderBy); err != nil {
			return nil, err
		}
		direction := "ASC"
		if opts.Descending {
			direction = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", opts.OrderBy, direction)
	}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	query += ";"

	result, err := c.Query(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	return Rows(result), nil
}

// Count returns the number of rows in table matching filter.
func (c *Client) Count(ctx context.Context, table string, filter map[string]interface{}) (int, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}
	whereClause, err := buildWhereClause(filter)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT count() AS total FROM %s WHERE %s GROUP ALL;`, table, whereClause)
	result, err := c.Query(ctx, query, filter)
	if err != nil {
		return 0, err
	}
	rows := Rows(result)
	if len(rows) == 0 {
		return 0, nil
	}
	return int(AsInt64(rows[0]["total"])), nil
}

func buildWhereClause(filter map[string]interface{}) (string, error) {
	if len(filter) == 0 {
		return "true", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		// Validate filter keys
		if err := validateIdentifier(k); err != nil {
			return "", err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, len(keys))
	for i, k := range keys {
		clauses[i] = fmt.Sprintf("%s = $%s", k, k)
	}
	return strings.Join(clauses, " AND "), nil
}

// AsString reads a string column, returning "" for anything else.
func AsString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// AsInt64 reads a numeric column. The driver may decode integers as any of
// the Go numeric kinds depending on their size.
func AsInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
