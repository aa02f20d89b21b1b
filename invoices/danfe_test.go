package invoices

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConverterConvert(t *testing.T) {
	const xml = "<nfeProc>ok</nfeProc>"
	pdf := []byte("%PDF-1.4 danfe")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") != "secreta" {
			t.Errorf("Api-Key = %q", r.Header.Get("Api-Key"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != xml {
			t.Errorf("body = %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"NFE-123.pdf","type":"NFE","format":"BASE64","data":"` +
			base64.StdEncoding.EncodeToString(pdf) + `"}`))
	}))
	defer srv.Close()

	conv, err := NewConverter(srv.URL, "secreta", 0)
	if err != nil {
		t.Fatalf("new converter: %v", err)
	}

	name, got, err := conv.Convert(context.Background(), xml)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if name != "NFE-123.pdf" || string(got) != string(pdf) {
		t.Fatalf("got name=%q pdf=%q", name, got)
	}
}

func TestConverterHTTPErrorCarriesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"xml inválido"}`))
	}))
	defer srv.Close()

	conv, _ := NewConverter(srv.URL, "secreta", 0)
	_, _, err := conv.Convert(context.Background(), "<broken>")

	var convErr *ConvertError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *ConvertError, got %v", err)
	}
	if convErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", convErr.StatusCode)
	}
	if convErr.Payload["message"] != "xml inválido" {
		t.Fatalf("payload = %v", convErr.Payload)
	}
}

func TestConverterRejectsMissingCredentials(t *testing.T) {
	if _, err := NewConverter("", "k", 0); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewConverter("http://localhost", "", 0); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestStripProlog(t *testing.T) {
	in := "  <?xml version=\"1.0\"?>\n<NFe>x</NFe>"
	if got := stripProlog(in); got != "<NFe>x</NFe>" {
		t.Fatalf("stripProlog = %q", got)
	}
	if got := stripProlog("<NFe>x</NFe>"); got != "<NFe>x</NFe>" {
		t.Fatalf("stripProlog without prolog = %q", got)
	}
}
