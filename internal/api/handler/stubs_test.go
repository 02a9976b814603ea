package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/api/middleware"
	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

func newContext(method, target string, body io.Reader, contentType string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func authenticate(c echo.Context, id, role string) {
	c.Set(middleware.ContextUserID, id)
	c.Set(middleware.ContextEmail, id+"@example.com")
	c.Set(middleware.ContextRole, role)
}

type stubAuthService struct {
	signUpFn    func(ctx context.Context, in ports.SignUpInput) (*domain.User, error)
	signInFn    func(ctx context.Context, email, password string) (*ports.SignInResult, error)
	verifyFn    func(ctx context.Context, email, otp string) (*ports.LoginResult, error)
	logoutCalls int
}

func (s *stubAuthService) SignUp(ctx context.Context, in ports.SignUpInput) (*domain.User, error) {
	return s.signUpFn(ctx, in)
}

func (s *stubAuthService) SignIn(ctx context.Context, email, password string, _ domain.RequestMeta) (*ports.SignInResult, error) {
	return s.signInFn(ctx, email, password)
}

func (s *stubAuthService) VerifyOTP(ctx context.Context, email, otp string, _ domain.RequestMeta) (*ports.LoginResult, error) {
	return s.verifyFn(ctx, email, otp)
}

func (s *stubAuthService) ForgotPassword(context.Context, string, domain.RequestMeta) error {
	return nil
}

func (s *stubAuthService) ResetPassword(context.Context, string, string, domain.RequestMeta) error {
	return nil
}

func (s *stubAuthService) Logout(context.Context, ports.Actor) error {
	s.logoutCalls++
	return nil
}

func (s *stubAuthService) LogoutAll(context.Context, ports.Actor) error { return nil }

func (s *stubAuthService) CurrentUser(_ context.Context, userID string) (*domain.User, error) {
	return &domain.User{ID: userID}, nil
}

func (s *stubAuthService) ValidateSession(context.Context, string, int) error { return nil }

type stubBookService struct {
	created  *ports.CreateBookInput
	updated  *ports.UpdateBookInput
	reviewed domain.BookStatus
}

func (s *stubBookService) Create(_ context.Context, actor ports.Actor, in ports.CreateBookInput) (*domain.Book, error) {
	s.created = &in
	return &domain.Book{ID: "b1", Title: in.Title, SellerID: actor.ID, Status: domain.BookPending}, nil
}

func (s *stubBookService) Get(_ context.Context, id string) (*domain.Book, error) {
	if id == "missing" {
		return nil, domain.ErrBookNotFound
	}
	return &domain.Book{ID: id}, nil
}

func (s *stubBookService) ListAll(context.Context, domain.BookStatus) ([]*domain.Book, error) {
	return []*domain.Book{}, nil
}

func (s *stubBookService) ListApproved(context.Context, ports.ApprovedBooksQuery) ([]*domain.Book, error) {
	return []*domain.Book{}, nil
}

func (s *stubBookService) ListBySeller(context.Context, string) ([]*domain.Book, error) {
	return []*domain.Book{}, nil
}

func (s *stubBookService) ListApprovedBySeller(context.Context, string) ([]*domain.Book, error) {
	return []*domain.Book{}, nil
}

func (s *stubBookService) ListSold(context.Context, string) ([]*domain.Book, error) {
	return []*domain.Book{}, nil
}

func (s *stubBookService) Update(_ context.Context, _ ports.Actor, id string, in ports.UpdateBookInput) (*domain.Book, error) {
	s.updated = &in
	return &domain.Book{ID: id, Status: domain.BookPending}, nil
}

func (s *stubBookService) Delete(context.Context, ports.Actor, string) error { return nil }

func (s *stubBookService) Review(_ context.Context, _ ports.Actor, id string, status domain.BookStatus) (*domain.Book, error) {
	s.reviewed = status
	return &domain.Book{ID: id, Status: status}, nil
}

func (s *stubBookService) MarkSold(_ context.Context, _ ports.Actor, id string) (*domain.Book, error) {
	return &domain.Book{ID: id, IsSold: true}, nil
}

type stubActivityService struct {
	lastFilter ports.ActivityFilter
	logs       []*domain.ActivityLog
	cleanDays  int
}

func (s *stubActivityService) Record(context.Context, domain.ActivityLog) {}

func (s *stubActivityService) List(_ context.Context, f ports.ActivityFilter) (*ports.ActivityPage, error) {
	s.lastFilter = f
	return &ports.ActivityPage{Logs: s.logs}, nil
}

func (s *stubActivityService) ListForUser(_ context.Context, userID string, f ports.ActivityFilter) (*ports.ActivityPage, error) {
	f.UserID = userID
	s.lastFilter = f
	return &ports.ActivityPage{Logs: s.logs}, nil
}

func (s *stubActivityService) Stats(context.Context, time.Time, time.Time) (*ports.ActivityStats, error) {
	return &ports.ActivityStats{}, nil
}

func (s *stubActivityService) SecurityEvents(context.Context, int) ([]*domain.ActivityLog, error) {
	return s.logs, nil
}

func (s *stubActivityService) Export(context.Context, time.Time, time.Time) ([]*domain.ActivityLog, error) {
	return s.logs, nil
}

func (s *stubActivityService) Clean(_ context.Context, _ ports.Actor, days int) (int64, error) {
	s.cleanDays = days
	return 3, nil
}

type stubUserService struct {
	statusSet     domain.UserStatus
	notifications *bool
	profile       *ports.UpdateProfileInput
}

func (s *stubUserService) List(context.Context) ([]*domain.User, error) { return nil, nil }

func (s *stubUserService) Get(_ context.Context, id string) (*domain.User, error) {
	return &domain.User{ID: id}, nil
}

func (s *stubUserService) Delete(context.Context, ports.Actor, string) error { return nil }

func (s *stubUserService) UpdateProfile(_ context.Context, actor ports.Actor, in ports.UpdateProfileInput) (*domain.User, error) {
	s.profile = &in
	return &domain.User{ID: actor.ID, Name: in.Name}, nil
}

func (s *stubUserService) UpdateStatus(_ context.Context, _ ports.Actor, id string, status domain.UserStatus, _ time.Time) (*domain.User, error) {
	s.statusSet = status
	return &domain.User{ID: id, Status: status}, nil
}

func (s *stubUserService) SetNotifications(_ context.Context, actor ports.Actor, enabled bool) (*domain.User, error) {
	s.notifications = &enabled
	return &domain.User{ID: actor.ID, NotificationsEnabled: enabled}, nil
}

func (s *stubUserService) SidebarUsers(context.Context, string) ([]domain.UserSummary, error) {
	return []domain.UserSummary{}, nil
}

func (s *stubUserService) AddFavorite(_ context.Context, userID, bookID string) (*domain.User, error) {
	return &domain.User{ID: userID, Favorites: []string{bookID}}, nil
}

func (s *stubUserService) RemoveFavorite(_ context.Context, userID, _ string) (*domain.User, error) {
	return &domain.User{ID: userID, Favorites: []string{}}, nil
}

func (s *stubUserService) Favorites(context.Context, string) ([]*domain.Book, error) {
	return []*domain.Book{}, nil
}

func (s *stubUserService) UploadAvatar(context.Context, ports.Upload) (string, error) {
	return "http://localhost/api/uploads/avatars/a.jpg", nil
}

type stubMessageService struct {
	sender, receiver, text string
	sendErr                error
	unread                 int64
}

func (s *stubMessageService) Send(_ context.Context, senderID, receiverID, text string) (*domain.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sender, s.receiver, s.text = senderID, receiverID, text
	return &domain.Message{ID: "m1", SenderID: senderID, ReceiverID: receiverID, Message: text}, nil
}

func (s *stubMessageService) Conversation(context.Context, string, string) ([]*domain.Message, error) {
	return []*domain.Message{}, nil
}

func (s *stubMessageService) UnreadCount(context.Context, string) (int64, error) {
	return s.unread, nil
}
