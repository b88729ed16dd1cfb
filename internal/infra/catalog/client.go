// Package catalog 封装对外部书籍目录 (Open Library 风格的 JSON API)
// 的搜索代理。目录数据不落库，只做请求转发和结果裁剪。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 5 * time.Second

// Result 是目录搜索结果中与本应用相关的字段。
type Result struct {
	CatalogID string `json:"catalog_id"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Year      int    `json:"year,omitempty"`
}

// Client 是外部目录的 HTTP 客户端。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建目录客户端。baseURL 形如 "https://openlibrary.org"。
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// searchResponse 对应目录返回的 JSON 结构 (只解码需要的字段)。
type searchResponse struct {
	Docs []struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		FirstPublishYear int      `json:"first_publish_year"`
	} `json:"docs"`
}

// Search 执行一次目录搜索。外部目录不可用时返回错误，
// 由上层映射为内部错误，不影响聊天路径。
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	endpoint := fmt.Sprintf("%s/search.json?q=%s&limit=20", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("catalog: decode search response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Docs))
	for _, doc := range parsed.Docs {
		r := Result{
			CatalogID: doc.Key,
			Title:     doc.Title,
			Year:      doc.FirstPublishYear,
		}
		if len(doc.AuthorName) > 0 {
			r.Author = doc.AuthorName[0]
		}
		results = append(results, r)
	}
	return results, nil
}
