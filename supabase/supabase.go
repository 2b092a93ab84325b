package supabase

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	supa "github.com/nedpals/supabase-go"
)

const defaultUploadTimeout = 10 * time.Second

// insertFunc writes records into a table over one connection.
type insertFunc func(table string, records interface{}) error

// Client uploads rows to tables of a Supabase project, in the configured schema. The postgrest connection is made
// lazily and dropped after any failed or timed out insert, so the next upload starts on a fresh one.
type Client struct {
	url     string
	anonKey string
	userKey string
	schema  string
	timeout time.Duration

	insert  insertFunc        // nil until connected, and again after a failure
	connect func() insertFunc // makes a new connection

	logger *slog.Logger
}

func New(url, anonKey, userKey, schema string) (*Client, error) {
	if url == "" || anonKey == "" {
		return nil, errors.New("supabase url and key are required")
	}
	c := &Client{
		url:     url,
		anonKey: anonKey,
		userKey: userKey,
		schema:  schema,
		timeout: defaultUploadTimeout,
		logger:  slog.Default().With("component", "supabase", "host", url),
	}
	c.connect = c.postgrest
	return c, nil
}

// UploadRecords inserts the given records, which must be JSON encodable, into the named table.
func (c *Client) UploadRecords(table string, records interface{}) error {
	if c.insert == nil {
		c.insert = c.connect()
		c.logger.Info("Connected to supabase")
	}
	insert := c.insert

	// the supabase library has no timeout support of its own
	errCh := make(chan error, 1)
	go func() {
		errCh <- insert(table, records)
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		c.insert = nil
		return fmt.Errorf("insert into %s timed out after %v", table, c.timeout)
	case err := <-errCh:
		if err != nil {
			c.insert = nil
			return fmt.Errorf("insert into %s: %w", table, err)
		}
		return nil
	}
}

// postgrest connects with the supabase library. Schema and user JWT are passed as headers on every request, as the
// library has no options for them.
func (c *Client) postgrest() insertFunc {
	client := supa.CreateClient(c.url, c.anonKey)
	client.DB.AddHeader("Accept-Profile", c.schema)
	client.DB.AddHeader("Content-Profile", c.schema)
	if c.userKey != "" {
		client.DB.AddHeader("Authorization", "Bearer "+c.userKey)
	}

	return func(table string, records interface{}) error {
		return client.DB.From(table).Insert(records).Execute(nil)
	}
}
