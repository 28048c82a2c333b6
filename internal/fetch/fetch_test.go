package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalbodeule/noticecal/internal/config"
	"github.com/dalbodeule/noticecal/internal/logging"
)

func TestFetchAllWalksPages(t *testing.T) {
	var attachmentURL string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/file.pdf" {
			w.Write([]byte("%PDF-1.7 fake"))
			return
		}

		if err := r.ParseForm(); err != nil {
			t.Errorf("Bad form: %v", err)
		}
		if r.Method != http.MethodPost || r.FormValue("bbsId") != "BMSR00015" {
			t.Errorf("Unexpected request: %s %v", r.Method, r.Form)
		}

		switch r.FormValue("pageIndex") {
		case "1":
			fmt.Fprintf(w, `{"pagingInfo":{"totPage":2},"resultList":[
				{"boardId":1,"nttSj":"one","content":"<p>첫 번째 공고</p>","atchFileUrl":%q}
			]}`, attachmentURL)
		case "2":
			fmt.Fprint(w, `{"pagingInfo":{"totPage":2},"resultList":[
				{"boardId":2,"nttSj":"two","content":"<div>두 번째<br>공고</div>"}
			]}`)
		default:
			t.Errorf("Unexpected page %q", r.FormValue("pageIndex"))
		}
	}))
	defer srv.Close()
	attachmentURL = srv.URL + "/file.pdf"

	c := New(config.SourceConfig{ListURL: srv.URL, BoardID: "BMSR00015"}, logging.Discard())
	notices, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if len(notices) != 2 {
		t.Fatalf("Expected 2 notices across pages, got %d", len(notices))
	}
	if notices[0].ID != 1 || notices[1].ID != 2 {
		t.Errorf("Unexpected ids: %d, %d", notices[0].ID, notices[1].ID)
	}
	if notices[0].Content != "첫 번째 공고" {
		t.Errorf("HTML not flattened: %q", notices[0].Content)
	}
	if string(notices[0].Attachment) != "%PDF-1.7 fake" {
		t.Errorf("Attachment not downloaded: %q", notices[0].Attachment)
	}
	if notices[1].Attachment != nil {
		t.Errorf("Notice without link must carry no attachment")
	}
}

func TestFetchAllToleratesDeadAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.pdf" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"pagingInfo":{"totPage":1},"resultList":[
			{"boardId":7,"nttSj":"t","content":"body","atchFileUrl":"%s/gone.pdf"}
		]}`, "http://"+r.Host)
	}))
	defer srv.Close()

	c := New(config.SourceConfig{ListURL: srv.URL, BoardID: "BMSR00015"}, logging.Discard())
	notices, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(notices) != 1 || notices[0].Attachment != nil {
		t.Fatalf("Dead attachment must degrade, got %+v", notices)
	}
}

func TestFetchAllListingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(config.SourceConfig{ListURL: srv.URL, BoardID: "BMSR00015"}, logging.Discard())
	if _, err := c.FetchAll(context.Background()); err == nil {
		t.Fatal("Expected listing failure to surface")
	}
}

func TestStripHTML(t *testing.T) {
	cases := []struct{ in, want string }{
		{"<p>hello <b>world</b></p>", "hello world"},
		{"plain text", "plain text"},
		{"<script>evil()</script>visible", "visible"},
		{"<style>.x{}</style>shown", "shown"},
		{"", ""},
	}
	for _, c := range cases {
		if got := StripHTML(c.in); got != c.want {
			t.Errorf("StripHTML(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
