package gallery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
)

const page = `<!doctype html>
<html><head><title> Chapter 3 </title></head>
<body>
  <div class="reader">
    <img src="/img/001.jpg">
    <img src="data:image/gif;base64,R0lGODlhAQABAAAAACw=" data-src="img/002.jpg">
    <img data-src="https://cdn.example/003.png">
    <img src="/img/001.jpg">
    <img src="">
  </div>
  <img class="avatar" src="/static/avatar.png">
</body></html>`

func TestParse(t *testing.T) {
	base, _ := url.Parse("https://comics.example/series/3/")

	got, err := Parse(strings.NewReader(page), base, "div.reader img")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{
		"https://comics.example/img/001.jpg",
		"https://comics.example/series/3/img/002.jpg",
		"https://cdn.example/003.png",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %v, want %v", got, want)
	}

	all, err := Parse(strings.NewReader(page), base, "")
	if err != nil {
		t.Fatalf("Parse default selector: %v", err)
	}
	if len(all) != 4 || all[3] != "https://comics.example/static/avatar.png" {
		t.Fatalf("default selector = %v", all)
	}
}

func TestParse_NoImages(t *testing.T) {
	_, err := Parse(strings.NewReader("<html><body><p>nothing</p></body></html>"), nil, "")
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("err = %v, want ErrNoImages", err)
	}
	// relative sources without a base cannot be fetched
	_, err = Parse(strings.NewReader(`<img src="/a.jpg">`), nil, "")
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("err = %v, want ErrNoImages", err)
	}
}

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/series/3/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/series/3/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ch, err := Fetch(context.Background(), srv.Client(), 3, srv.URL+"/old", "div.reader img")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ch.Index != 3 || ch.Title != "Chapter 3" || ch.Len() != 3 {
		t.Fatalf("unexpected chapter: %+v", ch)
	}
	if ch.URL != srv.URL+"/series/3/" {
		t.Fatalf("url = %q", ch.URL)
	}
	if ch.Sources[1] != srv.URL+"/series/3/img/002.jpg" {
		t.Fatalf("expected sources resolved against the redirect target, got %v", ch.Sources)
	}

	if _, err := Fetch(context.Background(), srv.Client(), 0, srv.URL+"/empty", ""); !errors.Is(err, ErrNoImages) {
		t.Fatalf("err = %v, want ErrNoImages", err)
	}
	if _, err := Fetch(context.Background(), srv.Client(), 0, srv.URL+"/missing", ""); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("err = %v, want ErrBadStatus", err)
	}
}
