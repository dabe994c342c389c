// Package sqlapi is a minimal client of the warehouse SQL REST API (v2),
// used for credential and connectivity checks without the vendor CLI.
package sqlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/probeworks/pcbcv/pkg/buildtime"
	"github.com/probeworks/pcbcv/pkg/utils"
)

var ErrStatementFailed = errors.New("statement failed")

type Client struct {
	base  string
	token string
	hc    *http.Client
}

type Option = func(*Client) *Client

// WithBaseURL overrides the account endpoint. Mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) *Client {
		c.base = strings.TrimSuffix(u, "/")
		return c
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) *Client {
		c.hc = hc
		return c
	}
}

// New builds a client for the given account, authenticated with a
// KEYPAIR_JWT bearer token (see pkg/warehouse/keypair).
func New(account string, token string, opt ...Option) *Client {
	return utils.ApplyAll(
		&Client{
			base:  fmt.Sprintf("https://%s.snowflakecomputing.com", account),
			token: token,
			hc:    &http.Client{Timeout: 30 * time.Second},
		},
		opt...,
	)
}

type statementRequest struct {
	Statement string `json:"statement"`
	Timeout   int    `json:"timeout"`
}

type statementResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Exec submits a single statement and waits for it synchronously.
func (c *Client) Exec(ctx context.Context, statement string) error {
	body, err := json.Marshal(statementRequest{Statement: statement, Timeout: 60})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.base+"/api/v2/statements", bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Snowflake-Authorization-Token-Type", "KEYPAIR_JWT")
	req.Header.Set("User-Agent", "pcbcv/"+buildtime.VERSION())

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if 200 <= resp.StatusCode && resp.StatusCode < 300 {
		return nil
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	sr := statementResponse{}
	if json.Unmarshal(payload, &sr) == nil && sr.Message != "" {
		return fmt.Errorf(
			"%w: HTTP %d (code %s): %s",
			ErrStatementFailed, resp.StatusCode, sr.Code, sr.Message,
		)
	}
	return fmt.Errorf("%w: HTTP %d", ErrStatementFailed, resp.StatusCode)
}
