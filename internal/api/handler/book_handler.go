package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/api/metrics"
	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

const imagesField = "images"

type BookHandler struct {
	books ports.BookService
}

func NewBookHandler(books ports.BookService) *BookHandler {
	return &BookHandler{books: books}
}

type createBookRequest struct {
	Title       string  `json:"title" form:"title" validate:"required,max=200"`
	Genre       string  `json:"genre" form:"genre" validate:"required"`
	Description string  `json:"description" form:"description" validate:"max=5000"`
	Price       float64 `json:"price" form:"price"`
	Condition   string  `json:"condition" form:"condition" validate:"required"`
	Delivery    bool    `json:"delivery" form:"delivery"`
}

// updateBookRequest is the JSON form of a partial update; multipart updates
// are parsed field by field in parseUpdateBook.
type updateBookRequest struct {
	Title       *string  `json:"title" validate:"omitempty,max=200"`
	Genre       *string  `json:"genre"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Price       *float64 `json:"price"`
	Condition   *string  `json:"condition"`
	Delivery    *bool    `json:"delivery"`
}

type deleteBookRequest struct {
	BookID string `json:"bookId" validate:"required"`
}

type reviewBookRequest struct {
	Status string `json:"status" validate:"required"`
}

type bookMessageResponse struct {
	Message string       `json:"message"`
	Book    *domain.Book `json:"book"`
}

// Create posts a new listing for review.
//
// @Summary      Post a book
// @Tags         books
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        title        formData  string  true   "Title"
// @Param        genre        formData  string  true   "Genre"
// @Param        description  formData  string  false  "Description"
// @Param        price        formData  number  true   "Price"
// @Param        condition    formData  string  true   "Condition"
// @Param        delivery     formData  bool    false  "Delivery available"
// @Param        images       formData  file    false  "Up to 5 images"
// @Success      201          {object}  bookMessageResponse
// @Failure      400          {object}  map[string]string
// @Router       /api/book/post-book [post]
func (h *BookHandler) Create(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req createBookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	images, err := readUploads(c, imagesField, ports.MaxBookImages)
	if err != nil {
		return err
	}

	book, err := h.books.Create(c.Request().Context(), actor, ports.CreateBookInput{
		Title:       req.Title,
		Genre:       req.Genre,
		Description: req.Description,
		Price:       req.Price,
		Condition:   req.Condition,
		Delivery:    req.Delivery,
		Images:      images,
	})
	if err != nil {
		return err
	}

	metrics.BooksCreatedTotal.Inc()
	return c.JSON(http.StatusCreated, bookMessageResponse{Message: "Book posted successfully", Book: book})
}

// ListAll returns every listing, optionally filtered by status.
//
// @Summary      All books (admin)
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Pending, Approved or Declined"
// @Success      200     {array}   domain.Book
// @Router       /api/book/get-all-books [get]
func (h *BookHandler) ListAll(c echo.Context) error {
	books, err := h.books.ListAll(c.Request().Context(), domain.BookStatus(c.QueryParam("status")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, books)
}

// ListApproved returns the public catalogue.
//
// @Summary      Approved books
// @Tags         books
// @Produce      json
// @Param        genre   query     string  false  "Genre"
// @Param        search  query     string  false  "Title search"
// @Param        sort    query     string  false  "newest, price_asc or price_desc"
// @Success      200     {array}   domain.Book
// @Router       /api/book/get-approved-books [get]
func (h *BookHandler) ListApproved(c echo.Context) error {
	books, err := h.books.ListApproved(c.Request().Context(), ports.ApprovedBooksQuery{
		Genre:  c.QueryParam("genre"),
		Search: c.QueryParam("search"),
		Sort:   c.QueryParam("sort"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, books)
}

// Get returns one listing with its seller.
//
// @Summary      Get book by id
// @Tags         books
// @Produce      json
// @Param        bookId  path      string  true  "Book id"
// @Success      200     {object}  domain.Book
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Router       /api/book/get-book-by-id/{bookId} [get]
func (h *BookHandler) Get(c echo.Context) error {
	book, err := h.books.Get(c.Request().Context(), c.Param("bookId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, book)
}

// ListMine returns the caller's listings in every state.
//
// @Summary      My books
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.Book
// @Router       /api/book/get-book-by-user [get]
func (h *BookHandler) ListMine(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	books, err := h.books.ListBySeller(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, books)
}

// ListApprovedBySeller returns a seller's public listings.
//
// @Summary      Approved books of a seller
// @Tags         books
// @Produce      json
// @Param        userId  query     string  true  "Seller id"
// @Success      200     {array}   domain.Book
// @Router       /api/book/get-approved-by-user [get]
func (h *BookHandler) ListApprovedBySeller(c echo.Context) error {
	sellerID := c.QueryParam("userId")
	if sellerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	books, err := h.books.ListApprovedBySeller(c.Request().Context(), sellerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, books)
}

// ListSold returns the caller's sold listings.
//
// @Summary      My sold books
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.Book
// @Router       /api/book/sold [get]
func (h *BookHandler) ListSold(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	books, err := h.books.ListSold(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, books)
}

// Update edits the caller's listing and sends it back to review.
//
// @Summary      Update a book
// @Tags         books
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookId  path      string  true   "Book id"
// @Param        images  formData  file    false  "Replacement images"
// @Success      200     {object}  bookMessageResponse
// @Failure      403     {object}  map[string]string
// @Router       /api/book/update-book/{bookId} [patch]
func (h *BookHandler) Update(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	in, err := parseUpdateBook(c)
	if err != nil {
		return err
	}
	book, err := h.books.Update(c.Request().Context(), actor, c.Param("bookId"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bookMessageResponse{Message: "Book updated successfully", Book: book})
}

func parseUpdateBook(c echo.Context) (ports.UpdateBookInput, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		var req updateBookRequest
		if err := bindAndValidate(c, &req); err != nil {
			return ports.UpdateBookInput{}, err
		}
		return ports.UpdateBookInput{
			Title:       req.Title,
			Genre:       req.Genre,
			Description: req.Description,
			Price:       req.Price,
			Condition:   req.Condition,
			Delivery:    req.Delivery,
		}, nil
	}
	if err != nil {
		return ports.UpdateBookInput{}, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}

	value := func(key string) *string {
		if v, ok := form.Value[key]; ok && len(v) > 0 {
			s := v[0]
			return &s
		}
		return nil
	}

	in := ports.UpdateBookInput{
		Title:       value("title"),
		Genre:       value("genre"),
		Description: value("description"),
		Condition:   value("condition"),
	}
	if raw := value("price"); raw != nil {
		price, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			return in, echo.NewHTTPError(http.StatusBadRequest, "price must be a number")
		}
		in.Price = &price
	}
	if raw := value("delivery"); raw != nil {
		delivery, err := strconv.ParseBool(*raw)
		if err != nil {
			return in, echo.NewHTTPError(http.StatusBadRequest, "delivery must be true or false")
		}
		in.Delivery = &delivery
	}
	if in.Images, err = readUploads(c, imagesField, ports.MaxBookImages); err != nil {
		return in, err
	}
	return in, nil
}

// Delete removes a listing. Owners and admins only.
//
// @Summary      Delete a book
// @Tags         books
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      deleteBookRequest  true  "Book id"
// @Success      200   {object}  messageResponse
// @Failure      403   {object}  map[string]string
// @Router       /api/book/delete-book [delete]
func (h *BookHandler) Delete(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req deleteBookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.books.Delete(c.Request().Context(), actor, req.BookID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Book deleted successfully"})
}

// Review approves or declines a listing and notifies the seller.
//
// @Summary      Approve or decline a book (admin)
// @Tags         books
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookId  path      string             true  "Book id"
// @Param        body    body      reviewBookRequest  true  "Approved or Declined"
// @Success      200     {object}  bookMessageResponse
// @Failure      400     {object}  map[string]string
// @Router       /api/book/approve-book/{bookId} [patch]
func (h *BookHandler) Review(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req reviewBookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	book, err := h.books.Review(c.Request().Context(), actor, c.Param("bookId"), domain.BookStatus(req.Status))
	if err != nil {
		return err
	}

	metrics.BookReviewsTotal.WithLabelValues(string(book.Status)).Inc()
	return c.JSON(http.StatusOK, bookMessageResponse{Message: "Book status updated to " + string(book.Status), Book: book})
}

// MarkSold flags the caller's listing as sold.
//
// @Summary      Mark a book as sold
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        bookId  path      string  true  "Book id"
// @Success      200     {object}  bookMessageResponse
// @Failure      400     {object}  map[string]string
// @Router       /api/book/mark-as-sold/{bookId} [patch]
func (h *BookHandler) MarkSold(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	book, err := h.books.MarkSold(c.Request().Context(), actor, c.Param("bookId"))
	if err != nil {
		return err
	}

	metrics.BooksSoldTotal.Inc()
	return c.JSON(http.StatusOK, bookMessageResponse{Message: "Book marked as sold", Book: book})
}
