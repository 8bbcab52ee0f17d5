package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/vodstation/internal/httpclient"
	"github.com/snapetech/vodstation/internal/source"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) UpstreamRequest(src, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, src+":"+result)
}

func TestBuildURL(t *testing.T) {
	got, err := BuildURL("http://a.example/api.php/provide/vod/?at=json", Query{TypeID: "2", Keyword: "繁花", Page: 3})
	require.NoError(t, err)
	u, _ := url.Parse(got)
	q := u.Query()
	assert.Equal(t, "json", q.Get("at"))
	assert.Equal(t, "detail", q.Get("ac"))
	assert.Equal(t, "3", q.Get("pg"))
	assert.Equal(t, "2", q.Get("t"))
	assert.Equal(t, "繁花", q.Get("wd"))

	got, err = BuildURL("http://a.example/api.php", Query{})
	require.NoError(t, err)
	assert.Equal(t, "http://a.example/api.php?ac=detail", got)
}

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("pg"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":1,"list":[
			{"vod_id":"1","vod_name":"Alpha","type_name":"动作片","vod_play_url":"HD$http://x/a.m3u8"},
			{"vod_id":"","vod_name":""},
			{"vod_id":2,"vod_name":"Beta","type_name":"国产剧"}
		]}`))
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(time.Second, nil)
	c.Recorder = rec
	items := c.FetchPage(context.Background(), source.Source{Name: "A", API: srv.URL, Tip: "fast"}, Query{Page: 2})
	require.Len(t, items, 2)
	assert.Equal(t, "Alpha", items[0].Title)
	assert.Equal(t, "fast", items[0].SourceTip)
	assert.Equal(t, "2", items[1].ID)
	assert.Equal(t, []string{"A:ok"}, rec.seen)
}

func TestFetchPage_mistypedRecordDroppedAlone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"list":[
			{"vod_id":1,"vod_name":"Good","vod_play_url":"a$http://x/1.m3u8"},
			{"vod_id":2,"vod_name":"Odd","vod_remarks":12},
			{"vod_id":3,"vod_name":"Also good","vod_time":"2024-05-01"}
		]}`))
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(time.Second, nil)
	c.Recorder = rec
	items, err := c.Page(context.Background(), source.Source{Name: "A", API: srv.URL}, Query{Page: 1})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Good", items[0].Title)
	assert.Len(t, items[0].Episodes, 1)
	assert.Equal(t, "Also good", items[1].Title)
	assert.Equal(t, []string{"A:ok"}, rec.seen)
}

func TestPage_reportsFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr bool
	}{
		{"empty list", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"list":[]}`)) }, false},
		{"missing list", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"code":0}`)) }, false},
		{"non-2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }, true},
		{"non-JSON", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c := New(time.Second, nil)
			c.Fetcher.Policy = httpclient.RetryPolicy{}
			items, err := c.Page(context.Background(), source.Source{Name: "S", API: srv.URL}, Query{Page: 1})
			assert.NotNil(t, items)
			assert.Empty(t, items)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFetchPage_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		result  string
	}{
		{"non-2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }, ResultError},
		{"non-JSON", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) }, ResultBadJSON},
		{"missing list", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"code":0}`)) }, ResultEmpty},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, ResultTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			rec := &recorder{}
			c := New(100*time.Millisecond, nil)
			c.Recorder = rec
			items := c.FetchPage(context.Background(), source.Source{Name: "S", API: srv.URL}, Query{Page: 1})
			assert.NotNil(t, items)
			assert.Empty(t, items)
			assert.Equal(t, []string{"S:" + tt.result}, rec.seen)
		})
	}
}

func TestDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "9" {
			w.Write([]byte(`{"list":[]}`))
			return
		}
		w.Write([]byte(`{"list":[{"vod_id":9,"vod_name":"Nine","vod_play_url":"1$http://x/1.mp4#2$http://x/2.mp4"}]}`))
	}))
	defer srv.Close()

	c := New(time.Second, nil)
	src := source.Source{Name: "A", API: srv.URL}
	it, ok := c.Detail(context.Background(), src, "9")
	require.True(t, ok)
	assert.Equal(t, "Nine", it.Title)
	assert.Len(t, it.Episodes, 2)

	_, ok = c.Detail(context.Background(), src, "10")
	assert.False(t, ok)
}
