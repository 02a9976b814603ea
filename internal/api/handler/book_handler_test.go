package handler

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/core/domain"
)

func multipartBody(t *testing.T, fields map[string]string, images int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < images; i++ {
		fw, err := w.CreateFormFile(imagesField, fmt.Sprintf("cover-%d.jpg", i))
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte("image bytes"))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func TestBookHandler_Create_Multipart(t *testing.T) {
	stub := &stubBookService{}
	h := NewBookHandler(stub)

	body, ct := multipartBody(t, map[string]string{
		"title":     "Dune",
		"genre":     "Science Fiction",
		"price":     "12.5",
		"condition": "Good",
		"delivery":  "true",
	}, 2)
	c, rec := newContext(http.MethodPost, "/api/book/post-book", body, ct)
	authenticate(c, "seller1", domain.RoleUser)

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	in := stub.created
	if in == nil {
		t.Fatal("service not called")
	}
	if in.Title != "Dune" || in.Price != 12.5 || !in.Delivery || len(in.Images) != 2 {
		t.Fatalf("unexpected input: %+v", in)
	}
	if in.Images[0].Filename != "cover-0.jpg" || string(in.Images[0].Data) != "image bytes" {
		t.Fatalf("unexpected upload: %+v", in.Images[0])
	}
}

func TestBookHandler_Create_TooManyImages(t *testing.T) {
	stub := &stubBookService{}
	h := NewBookHandler(stub)

	body, ct := multipartBody(t, map[string]string{
		"title": "Dune", "genre": "Science Fiction", "price": "10", "condition": "Good",
	}, 6)
	c, _ := newContext(http.MethodPost, "/api/book/post-book", body, ct)
	authenticate(c, "seller1", domain.RoleUser)

	if err := h.Create(c); !errors.Is(err, domain.ErrTooManyImages) {
		t.Fatalf("expected ErrTooManyImages, got %v", err)
	}
	if stub.created != nil {
		t.Fatal("service must not be called")
	}
}

func TestBookHandler_Create_MissingTitle(t *testing.T) {
	h := NewBookHandler(&stubBookService{})
	c, _ := newContext(http.MethodPost, "/api/book/post-book",
		strings.NewReader(`{"genre":"Fantasy","price":3,"condition":"Fair"}`), echo.MIMEApplicationJSON)
	authenticate(c, "seller1", domain.RoleUser)

	var he *echo.HTTPError
	if err := h.Create(c); !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestBookHandler_Update_JSONPartial(t *testing.T) {
	stub := &stubBookService{}
	h := NewBookHandler(stub)

	c, rec := newContext(http.MethodPatch, "/api/book/update-book/b1",
		strings.NewReader(`{"price":20}`), echo.MIMEApplicationJSON)
	c.SetParamNames("bookId")
	c.SetParamValues("b1")
	authenticate(c, "seller1", domain.RoleUser)

	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	in := stub.updated
	if in.Price == nil || *in.Price != 20 {
		t.Fatalf("price not forwarded: %+v", in)
	}
	if in.Title != nil || in.Genre != nil || in.Delivery != nil {
		t.Fatalf("absent fields must stay nil: %+v", in)
	}
}

func TestBookHandler_Update_MultipartPartial(t *testing.T) {
	stub := &stubBookService{}
	h := NewBookHandler(stub)

	body, ct := multipartBody(t, map[string]string{"title": "Dune Messiah", "delivery": "false"}, 1)
	c, _ := newContext(http.MethodPatch, "/api/book/update-book/b1", body, ct)
	c.SetParamNames("bookId")
	c.SetParamValues("b1")
	authenticate(c, "seller1", domain.RoleUser)

	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	in := stub.updated
	if in.Title == nil || *in.Title != "Dune Messiah" {
		t.Fatalf("title not forwarded: %+v", in)
	}
	if in.Delivery == nil || *in.Delivery {
		t.Fatalf("delivery not forwarded: %+v", in)
	}
	if in.Price != nil || len(in.Images) != 1 {
		t.Fatalf("unexpected input: %+v", in)
	}
}

func TestBookHandler_Update_BadPrice(t *testing.T) {
	h := NewBookHandler(&stubBookService{})
	body, ct := multipartBody(t, map[string]string{"price": "cheap"}, 0)
	c, _ := newContext(http.MethodPatch, "/api/book/update-book/b1", body, ct)
	authenticate(c, "seller1", domain.RoleUser)

	var he *echo.HTTPError
	if err := h.Update(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestBookHandler_Review(t *testing.T) {
	stub := &stubBookService{}
	h := NewBookHandler(stub)

	c, rec := newContext(http.MethodPatch, "/api/book/approve-book/b1",
		strings.NewReader(`{"status":"Approved"}`), echo.MIMEApplicationJSON)
	c.SetParamNames("bookId")
	c.SetParamValues("b1")
	authenticate(c, "admin1", domain.RoleAdmin)

	if err := h.Review(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if stub.reviewed != domain.BookApproved {
		t.Fatalf("expected Approved, got %q", stub.reviewed)
	}
	if !strings.Contains(rec.Body.String(), "Book status updated to Approved") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestBookHandler_ListApprovedBySeller_RequiresUserID(t *testing.T) {
	h := NewBookHandler(&stubBookService{})
	c, _ := newContext(http.MethodGet, "/api/book/get-approved-by-user", nil, "")

	var he *echo.HTTPError
	if err := h.ListApprovedBySeller(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestBookHandler_Get_NotFound(t *testing.T) {
	h := NewBookHandler(&stubBookService{})
	c, _ := newContext(http.MethodGet, "/api/book/get-book-by-id/missing", nil, "")
	c.SetParamNames("bookId")
	c.SetParamValues("missing")

	if err := h.Get(c); !errors.Is(err, domain.ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}
