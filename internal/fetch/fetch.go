// Package fetch pulls the full current notice set from the housing board's
// JSON listing endpoint.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/dalbodeule/noticecal/internal/config"
	"github.com/dalbodeule/noticecal/internal/model"
)

// listResponse is the board's paginated listing payload.
type listResponse struct {
	PagingInfo struct {
		TotPage int `json:"totPage"`
	} `json:"pagingInfo"`
	ResultList []listRow `json:"resultList"`
}

// listRow is one posting in the listing. Content arrives as HTML.
type listRow struct {
	BoardID       int64  `json:"boardId"`
	Title         string `json:"nttSj"`
	Content       string `json:"content"`
	AttachmentURL string `json:"atchFileUrl"`
}

// Client fetches raw notices.
type Client struct {
	http    *http.Client
	listURL string
	boardID string
	logger  *log.Logger
}

// New builds a fetcher for the configured board.
func New(cfg config.SourceConfig, logger *log.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: 60 * time.Second},
		listURL: cfg.ListURL,
		boardID: cfg.BoardID,
		logger:  logger,
	}
}

// FetchAll returns the full current notice set. The listing is paginated
// upstream; the first page reports the total page count and the loop walks
// the rest. Body HTML is flattened to text; a posting's PDF attachment, when
// linked, is downloaded alongside.
func (c *Client) FetchAll(ctx context.Context) ([]*model.RawNotice, error) {
	var notices []*model.RawNotice

	maxPage := 1
	for page := 1; page <= maxPage; page++ {
		res, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}
		maxPage = res.PagingInfo.TotPage

		for _, row := range res.ResultList {
			raw := &model.RawNotice{
				ID:      row.BoardID,
				Title:   row.Title,
				Content: StripHTML(row.Content),
			}

			if row.AttachmentURL != "" {
				data, err := c.download(ctx, row.AttachmentURL)
				if err != nil {
					// A dead attachment link degrades to a notice without
					// one rather than failing the whole fetch.
					c.logger.Printf("attachment for notice %d unavailable: %v", row.BoardID, err)
				} else {
					raw.Attachment = data
				}
			}

			notices = append(notices, raw)
		}
	}

	c.logger.Printf("fetched %d notices over %d pages", len(notices), maxPage)
	return notices, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) (*listResponse, error) {
	form := url.Values{
		"bbsId":           {c.boardID},
		"pageIndex":       {strconv.Itoa(page)},
		"searchAdresGu":   {""},
		"searchCondition": {""},
		"searchKeyword":   {""},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.listURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	var res listResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	return &res, nil
}

func (c *Client) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// StripHTML flattens markup to its text content. Script and style bodies are
// dropped; other text nodes concatenate with single spaces.
func StripHTML(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return strings.TrimSpace(markup)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return b.String()
}
