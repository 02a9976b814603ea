package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users map[string]*domain.User
	seq   int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Favorites = append([]string(nil), u.Favorites...)
	clone.BookListings = append([]string(nil), u.BookListings...)
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrEmailExists
		}
	}
	copy := cloneUser(user)
	if copy.ID == "" {
		r.seq++
		copy.ID = fmt.Sprintf("user-%d", r.seq)
	}
	r.users[copy.ID] = cloneUser(copy)
	return copy, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByIDs(_ context.Context, ids []string) ([]*domain.User, error) {
	var out []*domain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *stubUserRepo) AddFavorite(_ context.Context, userID, bookID string) error {
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if !u.HasFavorite(bookID) {
		u.Favorites = append(u.Favorites, bookID)
	}
	return nil
}

func without(list []string, v string) []string {
	out := []string{}
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}

func (r *stubUserRepo) RemoveFavorite(_ context.Context, userID, bookID string) error {
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Favorites = without(u.Favorites, bookID)
	return nil
}

func (r *stubUserRepo) RemoveFavoriteEverywhere(_ context.Context, bookID string) error {
	for _, u := range r.users {
		u.Favorites = without(u.Favorites, bookID)
	}
	return nil
}

func (r *stubUserRepo) AddListing(_ context.Context, userID, bookID string) error {
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.BookListings = append(u.BookListings, bookID)
	return nil
}

func (r *stubUserRepo) RemoveListing(_ context.Context, userID, bookID string) error {
	if u, ok := r.users[userID]; ok {
		u.BookListings = without(u.BookListings, bookID)
	}
	return nil
}

func (r *stubUserRepo) Count(_ context.Context, f ports.UserCountFilter) (int64, error) {
	var n int64
	for _, u := range r.users {
		if !f.CreatedSince.IsZero() && u.CreatedAt.Before(f.CreatedSince) {
			continue
		}
		if !f.ActiveSince.IsZero() && u.LastActivity.Before(f.ActiveSince) {
			continue
		}
		if !f.LockedAt.IsZero() && !u.IsLocked(f.LockedAt) {
			continue
		}
		n++
	}
	return n, nil
}

func (r *stubUserRepo) WeeklyActivity(_ context.Context) ([]ports.BucketCount, error) {
	return weekly(len(r.users)), nil
}

func weekly(n int) []ports.BucketCount {
	if n == 0 {
		return nil
	}
	return []ports.BucketCount{{Bucket: 1, Count: int64(n)}}
}

type stubBookRepo struct {
	books     map[string]*domain.Book
	seq       int
	updateErr error
}

func newStubBookRepo() *stubBookRepo {
	return &stubBookRepo{books: make(map[string]*domain.Book)}
}

func cloneBook(b *domain.Book) *domain.Book {
	clone := *b
	clone.Images = append([]string(nil), b.Images...)
	return &clone
}

func (r *stubBookRepo) Create(_ context.Context, b *domain.Book) (*domain.Book, error) {
	copy := cloneBook(b)
	r.seq++
	copy.ID = fmt.Sprintf("book-%d", r.seq)
	r.books[copy.ID] = cloneBook(copy)
	return copy, nil
}

func (r *stubBookRepo) FindByID(_ context.Context, id string) (*domain.Book, error) {
	b, ok := r.books[id]
	if !ok {
		return nil, domain.ErrBookNotFound
	}
	return cloneBook(b), nil
}

func (r *stubBookRepo) Update(_ context.Context, b *domain.Book) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.books[b.ID]; !ok {
		return domain.ErrBookNotFound
	}
	r.books[b.ID] = cloneBook(b)
	return nil
}

func (r *stubBookRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.books[id]; !ok {
		return domain.ErrBookNotFound
	}
	delete(r.books, id)
	return nil
}

func (r *stubBookRepo) DeleteBySeller(_ context.Context, sellerID string) (int64, error) {
	var n int64
	for id, b := range r.books {
		if b.SellerID == sellerID {
			delete(r.books, id)
			n++
		}
	}
	return n, nil
}

func (r *stubBookRepo) List(_ context.Context, f ports.ListBooksFilter) ([]*domain.Book, error) {
	ids := make(map[string]bool, len(f.IDs))
	for _, id := range f.IDs {
		ids[id] = true
	}
	var out []*domain.Book
	for _, b := range r.books {
		if len(f.IDs) > 0 && !ids[b.ID] {
			continue
		}
		if f.SellerID != "" && b.SellerID != f.SellerID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.Sold != nil && b.IsSold != *f.Sold {
			continue
		}
		if f.Genre != "" && b.Genre != f.Genre {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, cloneBook(b))
	}
	sort.Slice(out, func(i, j int) bool {
		switch f.Sort {
		case ports.SortPriceAsc:
			return out[i].Price < out[j].Price
		case ports.SortPriceDesc:
			return out[i].Price > out[j].Price
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *stubBookRepo) Count(_ context.Context, f ports.BookCountFilter) (int64, error) {
	var n int64
	for _, b := range r.books {
		if !f.CreatedSince.IsZero() && b.CreatedAt.Before(f.CreatedSince) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		n++
	}
	return n, nil
}

func (r *stubBookRepo) WeeklyListings(_ context.Context) ([]ports.BucketCount, error) {
	return weekly(len(r.books)), nil
}

type stubConversationRepo struct {
	convs       []*domain.Conversation
	upsertCalls int
}

func (r *stubConversationRepo) FindBetween(_ context.Context, a, b string) (*domain.Conversation, error) {
	for _, c := range r.convs {
		if (c.Participants[0] == a && c.Participants[1] == b) || (c.Participants[0] == b && c.Participants[1] == a) {
			clone := *c
			clone.MessageIDs = append([]string(nil), c.MessageIDs...)
			return &clone, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (r *stubConversationRepo) FindOrCreate(ctx context.Context, a, b string) (*domain.Conversation, error) {
	r.upsertCalls++
	if c, err := r.FindBetween(ctx, a, b); err == nil {
		return c, nil
	}
	c := &domain.Conversation{ID: fmt.Sprintf("conv-%d", len(r.convs)+1), Participants: []string{a, b}}
	r.convs = append(r.convs, c)
	clone := *c
	return &clone, nil
}

func (r *stubConversationRepo) find(id string) *domain.Conversation {
	for _, c := range r.convs {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *stubConversationRepo) AppendMessage(_ context.Context, conversationID, messageID string) error {
	c := r.find(conversationID)
	if c == nil {
		return domain.ErrConversationNotFound
	}
	c.MessageIDs = append(c.MessageIDs, messageID)
	c.LastMessageID = messageID
	c.HasUnread = true
	return nil
}

func (r *stubConversationRepo) ClearUnread(_ context.Context, conversationID string) error {
	c := r.find(conversationID)
	if c == nil {
		return domain.ErrConversationNotFound
	}
	c.HasUnread = false
	return nil
}

func (r *stubConversationRepo) ListForUser(_ context.Context, userID string) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	for i := len(r.convs) - 1; i >= 0; i-- {
		c := r.convs[i]
		if c.Participants[0] == userID || c.Participants[1] == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type stubMessageRepo struct {
	msgs []*domain.Message
}

func (r *stubMessageRepo) Create(_ context.Context, m *domain.Message) (*domain.Message, error) {
	clone := *m
	clone.ID = fmt.Sprintf("msg-%d", len(r.msgs)+1)
	r.msgs = append(r.msgs, &clone)
	out := clone
	return &out, nil
}

func (r *stubMessageRepo) FindByIDs(_ context.Context, ids []string) ([]*domain.Message, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*domain.Message
	for _, m := range r.msgs {
		if want[m.ID] {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubMessageRepo) MarkRead(_ context.Context, senderID, receiverID string) (int64, error) {
	var n int64
	for _, m := range r.msgs {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (r *stubMessageRepo) CountUnread(_ context.Context, receiverID string) (int64, error) {
	var n int64
	for _, m := range r.msgs {
		if m.ReceiverID == receiverID && !m.Read {
			n++
		}
	}
	return n, nil
}

type stubNotificationRepo struct {
	items []*domain.Notification
}

func (r *stubNotificationRepo) Create(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
	clone := *n
	clone.ID = fmt.Sprintf("note-%d", len(r.items)+1)
	r.items = append(r.items, &clone)
	out := clone
	return &out, nil
}

func (r *stubNotificationRepo) ListByUser(_ context.Context, userID string) ([]*domain.Notification, error) {
	var out []*domain.Notification
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].UserID == userID {
			clone := *r.items[i]
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	var n int64
	for _, item := range r.items {
		if item.UserID == userID && !item.IsRead {
			item.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *stubNotificationRepo) MarkRead(_ context.Context, userID, id string) error {
	for _, item := range r.items {
		if item.ID == id && item.UserID == userID {
			item.IsRead = true
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

type stubActivityRepo struct {
	entries   []*domain.ActivityLog
	lastList  ports.ActivityFilter
	insertErr error
}

func matchesActivity(e *domain.ActivityLog, f ports.ActivityFilter) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Action == "" && len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if len(f.Severities) > 0 {
		found := false
		for _, s := range f.Severities {
			if s == e.Severity {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	return true
}

func (r *stubActivityRepo) Insert(_ context.Context, e *domain.ActivityLog) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	clone := *e
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *stubActivityRepo) List(_ context.Context, f ports.ActivityFilter) ([]*domain.ActivityLog, error) {
	r.lastList = f
	var out []*domain.ActivityLog
	for _, e := range r.entries {
		if matchesActivity(e, f) {
			out = append(out, e)
		}
	}
	start := 0
	if f.Page > 1 {
		start = (f.Page - 1) * f.Limit
	}
	if start > len(out) {
		return nil, nil
	}
	out = out[start:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *stubActivityRepo) Count(_ context.Context, f ports.ActivityFilter) (int64, error) {
	var n int64
	for _, e := range r.entries {
		if matchesActivity(e, f) {
			n++
		}
	}
	return n, nil
}

func (r *stubActivityRepo) GroupBy(_ context.Context, field string, f ports.ActivityFilter, _ int) ([]ports.GroupCount, error) {
	counts := map[string]int64{}
	for _, e := range r.entries {
		if !matchesActivity(e, f) {
			continue
		}
		switch field {
		case ports.ActivityFieldAction:
			counts[e.Action]++
		case ports.ActivityFieldStatus:
			counts[e.Status]++
		case ports.ActivityFieldSeverity:
			counts[e.Severity]++
		case ports.ActivityFieldUserEmail:
			counts[e.UserEmail]++
		case ports.ActivityFieldIPAddress:
			counts[e.IPAddress]++
		}
	}
	var out []ports.GroupCount
	for k, v := range counts {
		out = append(out, ports.GroupCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (r *stubActivityRepo) Hourly(_ context.Context, since time.Time) ([]ports.BucketCount, error) {
	counts := map[int]int64{}
	for _, e := range r.entries {
		if !e.CreatedAt.Before(since) {
			counts[e.CreatedAt.Hour()]++
		}
	}
	var out []ports.BucketCount
	for h, c := range counts {
		out = append(out, ports.BucketCount{Bucket: h, Count: c})
	}
	return out, nil
}

func (r *stubActivityRepo) Daily(_ context.Context, f ports.ActivityFilter) ([]ports.GroupCount, error) {
	counts := map[string]int64{}
	for _, e := range r.entries {
		if matchesActivity(e, f) {
			counts[e.CreatedAt.Format("2006-01-02")]++
		}
	}
	var out []ports.GroupCount
	for d, c := range counts {
		out = append(out, ports.GroupCount{Key: d, Count: c})
	}
	return out, nil
}

func (r *stubActivityRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []*domain.ActivityLog
	var n int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return n, nil
}

func (r *stubActivityRepo) actions() []string {
	var out []string
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type stubAuditRepo struct {
	entries []*domain.AuditLog
}

func (r *stubAuditRepo) Insert(_ context.Context, e *domain.AuditLog) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *stubAuditRepo) List(_ context.Context, page, limit int) ([]*domain.AuditLog, int64, error) {
	start := (page - 1) * limit
	if start >= len(r.entries) {
		return nil, int64(len(r.entries)), nil
	}
	end := start + limit
	if end > len(r.entries) {
		end = len(r.entries)
	}
	return r.entries[start:end], int64(len(r.entries)), nil
}

// ---------------------------------------------------------------------------
// Infrastructure stubs
// ---------------------------------------------------------------------------

// recordingActivity records synchronously into a stub repository.
type recordingActivity struct {
	repo *stubActivityRepo
}

func (r recordingActivity) Record(ctx context.Context, e domain.ActivityLog) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_ = r.repo.Insert(ctx, &e)
}

type stubMailQueue struct {
	sent []ports.Email
}

func (q *stubMailQueue) Enqueue(e ports.Email) { q.sent = append(q.sent, e) }

func (q *stubMailQueue) last() ports.Email {
	if len(q.sent) == 0 {
		return ports.Email{}
	}
	return q.sent[len(q.sent)-1]
}

type stubThrottle struct {
	deny bool
	err  error
}

func (t stubThrottle) Allow(context.Context, string) (bool, error) {
	return !t.deny, t.err
}

type stubImageStore struct {
	saved   []string
	removed []string
	seq     int
}

func (s *stubImageStore) Save(_ context.Context, folder string, uploads []ports.Upload) ([]string, error) {
	keys := make([]string, 0, len(uploads))
	for range uploads {
		s.seq++
		key := fmt.Sprintf("%s-%d.jpg", folder, s.seq)
		keys = append(keys, key)
		s.saved = append(s.saved, key)
	}
	return keys, nil
}

func (s *stubImageStore) Remove(_ context.Context, _ string, keys []string) {
	s.removed = append(s.removed, keys...)
}

type emitted struct {
	userID string
	event  string
	data   any
}

type stubEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *stubEmitter) EmitToUser(userID, event string, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{userID: userID, event: event, data: data})
}

func (e *stubEmitter) count(userID, event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.userID == userID && ev.event == event {
			n++
		}
	}
	return n
}
