// Package apiclient はバックエンドHTTP APIを呼び出す共通クライアントを提供する。
// エラーレスポンスは統一フォーマットからmodel.APIErrorに復元する。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/eventorg/internal/model"
)

// maxErrorBodySize はエラーレスポンスとして読み込む最大バイト数。
const maxErrorBodySize = 64 * 1024

// TokenSource は現在のIDトークンを返す。未ログインの場合は空文字を返す。
type TokenSource func() string

// Client はバックエンドAPIのHTTPクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
}

// New はClientを生成する。httpClientがnilの場合は10秒タイムアウトのクライアントを使用する。
func New(baseURL string, httpClient *http.Client, token TokenSource) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		token:      token,
	}
}

// WithToken はトークン取得元を差し替えたクライアントを返す。
func (c *Client) WithToken(token TokenSource) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Do はリクエストを送信し、2xxの場合はレスポンスボディをoutにデコードする。
// outがnilの場合はボディを読み捨てる。
// 2xx以外は*model.APIErrorとして返す。
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// errorBody はバックエンドの統一エラーフォーマット。
type errorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// decodeError はエラーレスポンスをAPIErrorに変換する。
// 統一フォーマットでない場合はステータス行をメッセージとする。
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return &model.APIError{
			Code:     body.Code,
			Message:  body.Message,
			Category: body.Category,
			Action:   body.Action,
		}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = resp.Status
	}
	return &model.APIError{
		Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:  msg,
		Category: "system",
	}
}
