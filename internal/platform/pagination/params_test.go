package pagination

import (
	"errors"
	"net/url"
	"testing"
)

func TestParsePageSizeDefaultsAndCaps(t *testing.T) {
	opts := Options{DefaultPageSize: 20, MaxPageSize: 100}

	params, err := Parse(url.Values{}, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.PageSize != 20 {
		t.Errorf("default page size = %d, want 20", params.PageSize)
	}

	params, err = Parse(url.Values{"pageSize": {"500"}}, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.PageSize != 100 {
		t.Errorf("capped page size = %d, want 100", params.PageSize)
	}

	if _, err := Parse(url.Values{"pageSize": {"0"}}, opts); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("expected ErrInvalidPageSize for zero, got %v", err)
	}
	if _, err := Parse(url.Values{"pageSize": {"abc"}}, opts); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("expected ErrInvalidPageSize for non-integer, got %v", err)
	}
}

func TestParseOrderByValidation(t *testing.T) {
	opts := Options{AllowedOrderFields: []string{"createdAt"}}

	params, err := Parse(url.Values{"orderBy": {"createdAt desc"}}, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(params.Orders) != 1 || params.Orders[0].Field != "createdAt" || !params.Orders[0].Desc {
		t.Errorf("unexpected orders %+v", params.Orders)
	}

	if _, err := Parse(url.Values{"orderBy": {"total desc"}}, opts); !errors.Is(err, ErrInvalidOrderBy) {
		t.Errorf("expected ErrInvalidOrderBy for disallowed field, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := EncodeToken(Cursor{StartAfter: []any{"ord_17"}})
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	cursor, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if len(cursor.StartAfter) != 1 || cursor.StartAfter[0] != "ord_17" {
		t.Errorf("unexpected cursor %+v", cursor)
	}

	if _, err := DecodeToken("%%%not-base64%%%"); !errors.Is(err, ErrInvalidPageToken) {
		t.Errorf("expected ErrInvalidPageToken, got %v", err)
	}

	empty, err := EncodeToken(Cursor{})
	if err != nil || empty != "" {
		t.Errorf("empty cursor must encode to empty token, got %q, %v", empty, err)
	}
}

func TestMustFillsPageSize(t *testing.T) {
	params := Must(Params{})
	if params.PageSize != DefaultPageSize {
		t.Errorf("page size = %d, want %d", params.PageSize, DefaultPageSize)
	}
	params = Must(Params{PageSize: 5})
	if params.PageSize != 5 {
		t.Errorf("page size = %d, want 5", params.PageSize)
	}
}
