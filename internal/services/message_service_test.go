package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aulalibre/go-aula-backend/internal/domain"
	"github.com/aulalibre/go-aula-backend/internal/storage"
	"github.com/aulalibre/go-aula-backend/internal/utils"
	"github.com/aulalibre/go-aula-backend/internal/ws"
)

// newServiceDB opens a throwaway SQLite handle. The fakes own persistence;
// the handle only backs the transactions the service opens.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "svc.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

// ----- Fake message repo -----

type fakeMsgRepo struct {
	nextID int64

	createChatID string
	createSender int64
	createBody   string
	createErr    error

	attMessageID int64
	attRef       string
	attErr       error

	refArg  string
	refAtt  *domain.Attachment
	refErr  error

	listBeforeAt time.Time
	listBeforeID int64
	listLimit    int
	listItems    []domain.Message
	listErr      error
}

func (r *fakeMsgRepo) CreateMessage(ctx context.Context, db *gorm.DB, chatID string, senderID int64, body string) (*domain.Message, error) {
	r.createChatID, r.createSender, r.createBody = chatID, senderID, body
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	return &domain.Message{
		ID:        r.nextID,
		ChatID:    chatID,
		SenderID:  senderID,
		Body:      body,
		Status:    domain.MessageStatusSent,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (r *fakeMsgRepo) CreateAttachment(ctx context.Context, db *gorm.DB, messageID int64, ref, filename, mimeType string, size int64) (*domain.Attachment, error) {
	r.attMessageID, r.attRef = messageID, ref
	if r.attErr != nil {
		return nil, r.attErr
	}
	return &domain.Attachment{ID: "a1", MessageID: messageID, Ref: ref, Filename: filename, MimeType: mimeType, SizeBytes: size}, nil
}

func (r *fakeMsgRepo) GetAttachmentByRef(ctx context.Context, db *gorm.DB, ref string) (*domain.Attachment, error) {
	r.refArg = ref
	return r.refAtt, r.refErr
}

func (r *fakeMsgRepo) ListMessagesBefore(ctx context.Context, db *gorm.DB, chatID string, beforeAt time.Time, beforeID int64, limit int) ([]domain.Message, error) {
	r.listBeforeAt, r.listBeforeID, r.listLimit = beforeAt, beforeID, limit
	if r.listErr != nil {
		return nil, r.listErr
	}
	if len(r.listItems) > limit {
		return r.listItems[:limit], nil
	}
	return r.listItems, nil
}

// ----- Fake blob store -----

type fakeBlobStore struct {
	saveStored *storage.Stored
	saveErr    error

	openData []byte
	openErr  error

	removed []string
}

func (f *fakeBlobStore) Save(data []byte, filename, declaredMime string) (*storage.Stored, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	if f.saveStored != nil {
		return f.saveStored, nil
	}
	return &storage.Stored{Ref: "ref-1.pdf", MimeType: "application/pdf", SizeBytes: int64(len(data))}, nil
}

func (f *fakeBlobStore) Open(ref string) ([]byte, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.openData, nil
}

func (f *fakeBlobStore) Remove(ref string) error {
	f.removed = append(f.removed, ref)
	return nil
}

// ----- Fake pusher -----

type pushed struct {
	userID int64
	ev     ws.Event
}

type fakePusher struct {
	calls []pushed
}

func (f *fakePusher) Push(userID int64, ev ws.Event) {
	f.calls = append(f.calls, pushed{userID, ev})
}

// ----- Helpers -----

func newMessageService(t *testing.T, chats *fakeChatRepo, repo *fakeMsgRepo, store *fakeBlobStore, push *fakePusher) *MessageService {
	t.Helper()
	return &MessageService{
		DB:    newServiceDB(t),
		Repo:  repo,
		Chats: chats,
		Store: store,
		Push:  push,
	}
}

func chatBetween(a, b int64) *domain.Chat {
	na, nb := domain.NormalizePair(a, b)
	return &domain.Chat{ID: "c1", UserA: na, UserB: nb}
}

// ----- Send -----

func TestSend_TextMessagePersistsAndPushesToPeer(t *testing.T) {
	repo := &fakeMsgRepo{}
	push := &fakePusher{}
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, repo, &fakeBlobStore{}, push)

	m, err := s.Send(context.Background(), "c1", 10, "  hola  ", nil)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if m.Body != "hola" {
		t.Errorf("body = %q; want trimmed %q", m.Body, "hola")
	}
	if repo.createChatID != "c1" || repo.createSender != 10 {
		t.Errorf("CreateMessage args = (%q, %d)", repo.createChatID, repo.createSender)
	}
	if len(push.calls) != 1 {
		t.Fatalf("pushes = %d; want 1", len(push.calls))
	}
	if push.calls[0].userID != 20 {
		t.Errorf("pushed to %d; want the other participant 20", push.calls[0].userID)
	}
	if push.calls[0].ev.Type != ws.EventMensaje {
		t.Errorf("event type = %q", push.calls[0].ev.Type)
	}
}

func TestSend_EmptyMessageRejected(t *testing.T) {
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, &fakeMsgRepo{}, &fakeBlobStore{}, &fakePusher{})

	_, err := s.Send(context.Background(), "c1", 10, "   \t ", nil)
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestSend_AttachmentOnlyIsAllowed(t *testing.T) {
	repo := &fakeMsgRepo{}
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, repo, &fakeBlobStore{}, &fakePusher{})

	m, err := s.Send(context.Background(), "c1", 10, "", &Upload{Data: []byte("%PDF-"), Filename: "t.pdf", MimeType: "application/pdf"})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if m.Attachment == nil {
		t.Fatal("attachment not attached to message")
	}
	if repo.attMessageID != m.ID {
		t.Errorf("attachment linked to message %d; want %d", repo.attMessageID, m.ID)
	}
}

func TestSend_BodyTooLong(t *testing.T) {
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, &fakeMsgRepo{}, &fakeBlobStore{}, &fakePusher{})
	s.MaxBodyRunes = 5

	_, err := s.Send(context.Background(), "c1", 10, "demasiado largo", nil)
	if !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestSend_ChatNotFound(t *testing.T) {
	s := newMessageService(t, &fakeChatRepo{getErr: gorm.ErrRecordNotFound}, &fakeMsgRepo{}, &fakeBlobStore{}, &fakePusher{})

	_, err := s.Send(context.Background(), "nope", 10, "hola", nil)
	if !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestSend_NotParticipant(t *testing.T) {
	push := &fakePusher{}
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, &fakeMsgRepo{}, &fakeBlobStore{}, push)

	_, err := s.Send(context.Background(), "c1", 30, "hola", nil)
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if len(push.calls) != 0 {
		t.Error("nothing should be pushed for a rejected send")
	}
}

func TestSend_InvalidAttachmentWrapsStorageError(t *testing.T) {
	repo := &fakeMsgRepo{}
	push := &fakePusher{}
	store := &fakeBlobStore{saveErr: storage.ErrTooLarge}
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, repo, store, push)

	_, err := s.Send(context.Background(), "c1", 10, "", &Upload{Data: make([]byte, 4), Filename: "x.bin"})
	if !errors.Is(err, ErrAttachmentInvalid) {
		t.Fatalf("expected ErrAttachmentInvalid, got %v", err)
	}
	if !errors.Is(err, storage.ErrTooLarge) {
		t.Fatalf("wrapped cause lost: %v", err)
	}
	if repo.createChatID != "" {
		t.Error("no message row should be written for a rejected attachment")
	}
	if len(push.calls) != 0 {
		t.Error("nothing should be pushed for a rejected attachment")
	}
}

func TestSend_CommitFailureRemovesStoredPayload(t *testing.T) {
	repo := &fakeMsgRepo{createErr: errors.New("disk full")}
	store := &fakeBlobStore{}
	push := &fakePusher{}
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, repo, store, push)

	_, err := s.Send(context.Background(), "c1", 10, "", &Upload{Data: []byte("%PDF-"), Filename: "t.pdf"})
	if err == nil {
		t.Fatal("expected commit error")
	}
	if len(store.removed) != 1 || store.removed[0] != "ref-1.pdf" {
		t.Fatalf("stored payload not compensated: removed=%v", store.removed)
	}
	if len(push.calls) != 0 {
		t.Error("nothing should be pushed for a failed commit")
	}
}

// ----- ListPage -----

func TestListPage_FirstPageUsesDefaultsAndHasMore(t *testing.T) {
	items := make([]domain.Message, 51)
	base := time.Now().UTC()
	for i := range items {
		items[i] = domain.Message{ID: int64(100 - i), ChatID: "c1", CreatedAt: base.Add(-time.Duration(i) * time.Second)}
	}
	repo := &fakeMsgRepo{listItems: items}
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, repo, &fakeBlobStore{}, &fakePusher{})

	p, err := s.ListPage(context.Background(), "c1", "", 0)
	if err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if repo.listLimit != 51 {
		t.Errorf("repo limit = %d; want page size + 1 = 51", repo.listLimit)
	}
	if !repo.listBeforeAt.IsZero() {
		t.Error("first page should not carry a cursor position")
	}
	if len(p.Items) != 50 {
		t.Errorf("items = %d; want 50", len(p.Items))
	}
	if !p.HasMore || p.NextCursor == "" {
		t.Fatalf("expected HasMore with a cursor, got %+v", p)
	}

	last := p.Items[len(p.Items)-1]
	at, id, err := utils.DecodeCursor(p.NextCursor)
	if err != nil {
		t.Fatalf("NextCursor undecodable: %v", err)
	}
	if !at.Equal(last.CreatedAt) || id != last.ID {
		t.Errorf("cursor = (%v, %d); want last item (%v, %d)", at, id, last.CreatedAt, last.ID)
	}
}

func TestListPage_LastPageHasNoCursor(t *testing.T) {
	repo := &fakeMsgRepo{listItems: []domain.Message{{ID: 2}, {ID: 1}}}
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, repo, &fakeBlobStore{}, &fakePusher{})

	p, err := s.ListPage(context.Background(), "c1", "", 10)
	if err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if p.HasMore || p.NextCursor != "" {
		t.Fatalf("expected final page, got %+v", p)
	}
	if len(p.Items) != 2 {
		t.Errorf("items = %d; want 2", len(p.Items))
	}
}

func TestListPage_CursorPositionForwardedToRepo(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeMsgRepo{}
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, repo, &fakeBlobStore{}, &fakePusher{})

	if _, err := s.ListPage(context.Background(), "c1", utils.EncodeCursor(at, 42), 10); err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if !repo.listBeforeAt.Equal(at) || repo.listBeforeID != 42 {
		t.Errorf("repo cursor = (%v, %d); want (%v, 42)", repo.listBeforeAt, repo.listBeforeID, at)
	}
}

func TestListPage_InvalidCursor(t *testing.T) {
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, &fakeMsgRepo{}, &fakeBlobStore{}, &fakePusher{})

	_, err := s.ListPage(context.Background(), "c1", "!!not-a-cursor!!", 10)
	if !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor, got %v", err)
	}
}

func TestListPage_UnknownChat(t *testing.T) {
	s := newMessageService(t, &fakeChatRepo{getErr: gorm.ErrRecordNotFound}, &fakeMsgRepo{}, &fakeBlobStore{}, &fakePusher{})

	_, err := s.ListPage(context.Background(), "nope", "", 10)
	if !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestListPage_PageSizeClamped(t *testing.T) {
	repo := &fakeMsgRepo{}
	s := newMessageService(t, &fakeChatRepo{getChat: chatBetween(10, 20)}, repo, &fakeBlobStore{}, &fakePusher{})

	if _, err := s.ListPage(context.Background(), "c1", "", 10_000); err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if repo.listLimit != 101 {
		t.Errorf("repo limit = %d; want clamped max + 1 = 101", repo.listLimit)
	}
}

// ----- Download -----

func TestDownload_ReturnsMetadataAndPayload(t *testing.T) {
	att := &domain.Attachment{ID: "a1", Ref: "ref-1.pdf", Filename: "t.pdf", MimeType: "application/pdf"}
	repo := &fakeMsgRepo{refAtt: att}
	store := &fakeBlobStore{openData: []byte("%PDF-")}
	s := newMessageService(t, &fakeChatRepo{}, repo, store, &fakePusher{})

	got, data, err := s.Download(context.Background(), "ref-1.pdf")
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if got != att {
		t.Errorf("attachment = %+v", got)
	}
	if string(data) != "%PDF-" {
		t.Errorf("payload = %q", data)
	}
	if repo.refArg != "ref-1.pdf" {
		t.Errorf("looked up ref %q", repo.refArg)
	}
}

func TestDownload_UnknownRef(t *testing.T) {
	s := newMessageService(t, &fakeChatRepo{}, &fakeMsgRepo{refErr: gorm.ErrRecordNotFound}, &fakeBlobStore{}, &fakePusher{})

	if _, _, err := s.Download(context.Background(), "nope"); !errors.Is(err, ErrAttachmentNotFound) {
		t.Fatalf("expected ErrAttachmentNotFound, got %v", err)
	}
}

func TestDownload_MissingFileBehindRow(t *testing.T) {
	att := &domain.Attachment{ID: "a1", Ref: "ref-1.pdf"}
	s := newMessageService(t, &fakeChatRepo{}, &fakeMsgRepo{refAtt: att}, &fakeBlobStore{openErr: storage.ErrNotFound}, &fakePusher{})

	if _, _, err := s.Download(context.Background(), "ref-1.pdf"); !errors.Is(err, ErrAttachmentNotFound) {
		t.Fatalf("expected ErrAttachmentNotFound, got %v", err)
	}
}
